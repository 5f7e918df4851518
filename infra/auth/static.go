package auth

import (
	"context"

	coreauth "github.com/aidline/aidline/core/auth"
	"github.com/aidline/aidline/core/model"
)

// StaticVerifier maps opaque credentials to identities from a fixed table.
// Intended for development setups and tests.
type StaticVerifier struct {
	identities map[string]model.Identity
}

// NewStaticVerifier builds a verifier over the given credential table.
func NewStaticVerifier(identities map[string]model.Identity) *StaticVerifier {
	cp := make(map[string]model.Identity, len(identities))
	for k, v := range identities {
		cp[k] = v
	}
	return &StaticVerifier{identities: cp}
}

// Verify looks the credential up in the table.
func (v *StaticVerifier) Verify(_ context.Context, credential string) (model.Identity, error) {
	if credential == "" {
		return model.Identity{}, coreauth.ErrMissingCredential
	}
	id, ok := v.identities[credential]
	if !ok {
		return model.Identity{}, coreauth.ErrIdentityNotFound
	}
	return id, nil
}
