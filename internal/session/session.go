// Package session derives, per application instance, who is signed in and
// with which role, and keeps that view current as identities change.
//
// STATE PER INSTANCE:
//
//	Loading        → nothing resolved yet (first request, or role fetch pending
//	                 before the very first resolution)
//	Anonymous      → resolved, no identity
//	Authenticated  → resolved, identity present; Role may be empty when the
//	                 Role Record is missing or could not be fetched
//
// A Loading session must never be treated as a signed-out one, or the guard
// would bounce a signed-in user to /login while their role is still loading.
package session

import (
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
)

// Status is the resolution state of a Session.
type Status string

const (
	StatusLoading       Status = "loading"
	StatusAnonymous     Status = "anonymous"
	StatusAuthenticated Status = "authenticated"
)

// Session is a read-only snapshot of an instance's auth state.
type Session struct {
	Status   Status             `json:"status"`
	Identity *identity.Identity `json:"identity,omitempty"`
	Role     model.Role         `json:"role,omitempty"`
}

// Resolved reports whether the session has left the Loading state.
func (s Session) Resolved() bool {
	return s.Status != StatusLoading
}

// SignedIn reports whether the session resolved to an identity.
func (s Session) SignedIn() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// IsAdmin is derived from the stored role on every call, never cached.
func (s Session) IsAdmin() bool {
	return s.SignedIn() && s.Role == model.RoleAdmin
}
