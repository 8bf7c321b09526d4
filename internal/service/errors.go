package service

import (
	"context"
	"errors"
	"fmt"

	"rydz/internal/domain"
	"rydz/internal/store"
)

// Kind classifies an operation failure. Every core operation returns a typed
// *Error; the presentation layer decides user-facing copy from the kind.
type Kind string

const (
	// KindValidation: malformed or out-of-range input. Not retryable.
	KindValidation Kind = "VALIDATION"

	// KindAuthorization: caller lacks the required role or relationship.
	KindAuthorization Kind = "AUTHORIZATION"

	// KindInvalidState: operation not valid for the current status. The
	// message names the current status.
	KindInvalidState Kind = "INVALID_STATE"

	// KindCapacityExceeded: the manifest is full.
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"

	// KindDuplicateEntry: the passenger already holds a manifest entry.
	KindDuplicateEntry Kind = "DUPLICATE_ENTRY"

	// KindAlreadyLinked: the parent-student link already exists.
	KindAlreadyLinked Kind = "ALREADY_LINKED"

	// KindRoleMismatch: the parties' roles do not fit the operation.
	KindRoleMismatch Kind = "ROLE_MISMATCH"

	// KindConcurrency: a transaction conflict survived the retry budget.
	// Safe to retry a bounded number of times.
	KindConcurrency Kind = "CONCURRENCY"

	// KindTransient: a store or network timeout. Retryable.
	KindTransient Kind = "TRANSIENT"

	// KindNotFound: the referenced entity does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindInternal: anything else. Not exposed as a distinct caller
	// contract; surfaces as a generic failure.
	KindInternal Kind = "INTERNAL"
)

// Error is the typed failure returned by every core operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E creates a typed error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error, mapping store and decode errors
// into the taxonomy. Unrecognized errors are KindInternal.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	var decodeErr *domain.DecodeError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, store.ErrConflict):
		return KindConcurrency
	case errors.Is(err, store.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.As(err, &decodeErr):
		return KindValidation
	}
	return KindInternal
}

// Retryable reports whether the error kind is safe to retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrency, KindTransient:
		return true
	}
	return false
}

// wrap converts an arbitrary error into a typed *Error, preserving an
// existing one.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: KindOf(err), Message: msg, Err: err}
}

// retryAttempts bounds the core's internal retry of transient and
// concurrency failures before surfacing them.
const retryAttempts = 3

// withRetry runs fn, retrying retryable failures up to retryAttempts total
// attempts. All other kinds surface immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return wrap(ctxErr, "operation cancelled")
		}
		err = fn()
		if err == nil || !Retryable(err) {
			return err
		}
	}
	return err
}
