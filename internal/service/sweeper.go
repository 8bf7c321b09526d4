package service

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"rydz/internal/domain"
	"rydz/internal/repository"
)

// SweepLease is a best-effort cross-instance lease so concurrent processes
// do not all sweep at once. Losing the lease is harmless: sweeping is
// idempotent.
type SweepLease interface {
	AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLease(ctx context.Context) error
}

const (
	sweepLeaseTTL  = 30 * time.Second
	sweepBatchSize = 100
)

// errAlreadySwept aborts a mutation whose target turned out to be terminal
// already. Not a failure.
var errAlreadySwept = errors.New("already swept")

// Sweeper opportunistically transitions time-expired rydz and events into
// terminal statuses. It is triggered by normal traffic, never blocks the
// triggering request, and swallows every error after logging it.
type Sweeper struct {
	rydz     repository.RydRepository
	events   repository.EventRepository
	lease    SweepLease
	interval time.Duration
	lastRun  atomic.Int64 // unix seconds
}

// NewSweeper creates a sweeper that runs at most once per interval.
func NewSweeper(rydz repository.RydRepository, events repository.EventRepository, lease SweepLease, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{rydz: rydz, events: events, lease: lease, interval: interval}
}

// MaybeSweep triggers a sweep in the background if the interval has elapsed.
// Safe to call on every request.
func (s *Sweeper) MaybeSweep() {
	now := time.Now().Unix()
	last := s.lastRun.Load()
	if now-last < int64(s.interval/time.Second) {
		return
	}
	if !s.lastRun.CompareAndSwap(last, now) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	}()
}

// Sweep transitions every expired, non-terminal ryd to CANCELLED_BY_SYSTEM
// and every expired active event to STALE. Running it twice produces no
// additional changes.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.lease != nil {
		ok, err := s.lease.AcquireSweepLease(ctx, sweepLeaseTTL)
		if err != nil || !ok {
			if err != nil {
				log.Printf("sweeper: lease acquisition failed: %v", err)
			}
			return
		}
		defer func() {
			_ = s.lease.ReleaseSweepLease(ctx)
		}()
	}

	now := time.Now().UTC()
	s.sweepRydz(ctx, now)
	s.sweepEvents(ctx, now)
}

func (s *Sweeper) sweepRydz(ctx context.Context, now time.Time) {
	expired, err := s.rydz.ExpiredBefore(ctx, now, sweepBatchSize)
	if err != nil {
		log.Printf("sweeper: query expired rydz: %v", err)
		return
	}
	for _, ryd := range expired {
		if ryd.Status.IsTerminal() {
			continue
		}
		_, err := s.rydz.Mutate(ctx, ryd.ID, func(r *domain.ActiveRyd) error {
			if r.Status.IsTerminal() {
				return errAlreadySwept
			}
			r.Status = domain.RydStatusCancelledBySystem
			r.CancelReason = "planned arrival time passed"
			r.UpdatedAt = now
			return nil
		})
		if err != nil && !errors.Is(err, errAlreadySwept) {
			log.Printf("sweeper: cancel stale ryd %s: %v", ryd.ID, err)
		}
	}
}

func (s *Sweeper) sweepEvents(ctx context.Context, now time.Time) {
	expired, err := s.events.ActiveStartingBefore(ctx, now, sweepBatchSize)
	if err != nil {
		log.Printf("sweeper: query expired events: %v", err)
		return
	}
	for _, event := range expired {
		if event.Status == domain.EventStatusStale {
			continue
		}
		_, err := s.events.Mutate(ctx, event.ID, func(e *domain.Event) error {
			if e.Status == domain.EventStatusStale {
				return errAlreadySwept
			}
			e.Status = domain.EventStatusStale
			e.UpdatedAt = now
			return nil
		})
		if err != nil && !errors.Is(err, errAlreadySwept) {
			log.Printf("sweeper: mark stale event %s: %v", event.ID, err)
		}
	}
}
