// Package auth defines the identity verification boundary. Credentials are
// opaque to the dispatch core; a Verifier turns one into an Identity or
// fails with one of the three connection-setup errors, which form the
// exhaustive error vocabulary clients may observe during a handshake.
package auth

import (
	"context"
	"errors"

	"github.com/aidline/aidline/core/model"
)

var (
	// ErrMissingCredential is returned when no credential was supplied.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential is returned when the credential is malformed,
	// expired or fails signature verification.
	ErrInvalidCredential = errors.New("invalid or expired credential")
	// ErrIdentityNotFound is returned when the credential is valid but the
	// subject is unknown or disabled.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Verifier validates an opaque credential and returns the subject identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (model.Identity, error)
}
