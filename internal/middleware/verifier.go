package middleware

import "context"

// StaticVerifier verifies bearer tokens against a fixed token → user ID map.
// It backs local development and tests; production deploys plug in a real
// identity provider behind the same Verifier interface.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier creates a verifier over the given token map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

// VerifyCredential resolves a token to its user ID.
func (v *StaticVerifier) VerifyCredential(_ context.Context, token string) (string, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return "", ErrUnverified
	}
	return userID, nil
}

var _ Verifier = (*StaticVerifier)(nil)
