// Package auth verifies Firebase ID tokens and exposes the authenticated
// seller identity to the rest of the request pipeline.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Roles recognised by the API when enforcing shop-level permissions.
const (
	RoleSeller  = "seller"
	RoleManager = "manager"
	RoleOwner   = "owner"
)

// ErrUserLoaderUnavailable is returned by Identity.User when no loader was wired in.
var ErrUserLoaderUnavailable = errors.New("auth: user loader not configured")

// UserLoader resolves a Firebase user record by UID.
type UserLoader func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)

// Identity is the authenticated caller derived from a verified ID token.
// The full user record is loaded lazily and at most once.
type Identity struct {
	UID   string
	Email string
	Name  string
	Roles []string

	token *firebaseauth.Token

	loadUser UserLoader
	loadOnce sync.Once
	record   *firebaseauth.UserRecord
	loadErr  error
}

// Token returns the decoded ID token backing this identity, if any.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity carries role, compared case-insensitively.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries at least one of roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// User fetches the Firebase user record for this identity. The first call
// hits the loader; the result, success or failure, is memoised.
func (i *Identity) User(ctx context.Context) (*firebaseauth.UserRecord, error) {
	if i == nil || i.loadUser == nil {
		return nil, ErrUserLoaderUnavailable
	}
	i.loadOnce.Do(func() {
		i.record, i.loadErr = i.loadUser(ctx, i.UID)
	})
	return i.record, i.loadErr
}

type ctxKey int

const identityKey ctxKey = 0

// WithIdentity stores identity on ctx for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
