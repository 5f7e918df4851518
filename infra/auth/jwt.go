// Package auth provides credential verifiers for the realtime gateway.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	coreauth "github.com/aidline/aidline/core/auth"
	"github.com/aidline/aidline/core/model"
)

// Config holds the JWT verifier settings.
type Config struct {
	Secret string `json:"secret"`
}

// Claims carries the platform claims on top of the registered JWT set.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Directory answers whether a subject is a known, active user. A nil
// directory disables the lookup and trusts the token alone.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// JWTVerifier validates HS256 bearer tokens and maps their claims to an
// identity.
type JWTVerifier struct {
	secret []byte
	dir    Directory
}

// NewJWTVerifier creates a verifier from the shared secret. dir may be nil.
func NewJWTVerifier(cfg Config, dir Directory) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: empty jwt secret")
	}
	return &JWTVerifier{secret: []byte(cfg.Secret), dir: dir}, nil
}

// Verify parses the credential and returns the subject identity.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (model.Identity, error) {
	if credential == "" {
		return model.Identity{}, coreauth.ErrMissingCredential
	}
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return model.Identity{}, coreauth.ErrInvalidCredential
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return model.Identity{}, coreauth.ErrInvalidCredential
	}
	role := model.Role(claims.Role)
	if !model.ValidRole(role) {
		return model.Identity{}, coreauth.ErrInvalidCredential
	}
	if v.dir != nil {
		known, err := v.dir.UserExists(ctx, claims.Subject)
		if err != nil {
			return model.Identity{}, err
		}
		if !known {
			return model.Identity{}, coreauth.ErrIdentityNotFound
		}
	}
	return model.Identity{UserID: claims.Subject, Role: role}, nil
}
