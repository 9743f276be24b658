package identity

import (
	"context"
	"errors"
)

// Identity is the verified result of a bearer token check.
type Identity struct {
	Subject string `json:"id"`
	Email   string `json:"email"`
}

var (
	// ErrUnauthorized means the provider rejected the credential.
	ErrUnauthorized = errors.New("invalid or expired token")
	// ErrUnavailable means the provider could not be reached (breaker open
	// or transport failure).
	ErrUnavailable = errors.New("identity provider unavailable")
)

// Provider verifies bearer tokens and owns the user records behind them.
// Token issuance and verification internals live entirely on the
// provider side; this service only consumes the verified (subject, email).
type Provider interface {
	Verify(ctx context.Context, token string) (Identity, error)
	DeleteUser(ctx context.Context, subject string) error
}
