// Package identity is the portal's Identity Provider: it creates and verifies
// credentials, runs federated sign-in, remembers which identity each
// application instance is signed in as, and notifies listeners whenever that
// changes.
//
// THE TWO HALVES OF "WHO IS THIS?":
//
//	Account  → durable credential row (email + bcrypt hash, or provider + subject)
//	Binding  → short-lived instance → identity mapping (who is signed in where)
//
// Signing in writes a binding, signing out removes it. Neither touches roles:
// the Role Record lives in the record store and is somebody else's job.
package identity

import (
	"context"
	"time"
)

// ProviderType records how an identity authenticates.
type ProviderType string

const (
	ProviderPassword ProviderType = "password"
	ProviderGoogle   ProviderType = "google"
	ProviderGitHub   ProviderType = "github"
)

// Federated reports whether p is a third-party provider.
func (p ProviderType) Federated() bool {
	return p != ProviderPassword && p != ""
}

// Identity is an authenticated principal. ID never changes for the lifetime
// of the account.
type Identity struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"displayName,omitempty"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	Provider    ProviderType `json:"provider"`
}

// Account is the persisted form of an Identity.
//
// Subject is the provider-scoped key: the normalised email for password
// accounts, the provider's user ID for federated ones. (Provider, Subject) is
// unique, which makes "duplicate email" and "same GitHub user" the same check.
type Account struct {
	ID           string
	Provider     ProviderType
	Subject      string
	Email        string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity converts the account to the public Identity view.
func (a *Account) Identity() *Identity {
	return &Identity{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		Provider:    a.Provider,
	}
}

// CredentialRepository persists accounts.
//
// CreateAccount returns an apperror.ErrConflict error when (Provider, Subject)
// is taken; lookups return apperror.ErrNotFound when nothing matches.
type CredentialRepository interface {
	CreateAccount(ctx context.Context, acct *Account) error
	AccountByID(ctx context.Context, id string) (*Account, error)
	AccountBySubject(ctx context.Context, provider ProviderType, subject string) (*Account, error)
	UpdateProfile(ctx context.Context, acct *Account) error
}

// BindingStore maps application instances to signed-in identity IDs.
// Lookup returns "" and no error for an unbound instance.
type BindingStore interface {
	Bind(ctx context.Context, instance, identityID string) error
	Lookup(ctx context.Context, instance string) (string, error)
	Unbind(ctx context.Context, instance string) error
}

// Change is delivered to listeners after an instance's identity changed.
// Identity is nil when the instance signed out. Remote is set when the change
// happened on another portal replica and arrived through a ChangeFeed.
type Change struct {
	Instance string
	Identity *Identity
	Remote   bool
}

// RemoteChange is what replicas tell each other: "the binding of Instance
// changed". Receivers re-read the binding instead of trusting a payload.
type RemoteChange struct {
	Origin   string `json:"origin"`
	Instance string `json:"instance"`
}

// ChangeFeed carries binding changes between portal replicas that share a
// BindingStore.
//
// Subscribe must not return before the subscription is live, so nothing
// published afterwards is missed. fn is called sequentially, in delivery
// order. The returned stop func ends the subscription.
type ChangeFeed interface {
	Publish(ctx context.Context, c RemoteChange) error
	Subscribe(ctx context.Context, fn func(RemoteChange)) (stop func() error, err error)
}

// Listener receives identity changes. It runs on the goroutine that caused
// the change and must not block.
type Listener func(Change)

// FederatedGrant is what the provider's callback hands back to the portal.
// Error is the callback's "error" query parameter; it is set when the user
// declined on the provider's consent page.
type FederatedGrant struct {
	Provider string
	Code     string
	Verifier string
	Error    string
}

// Provider is the Identity Provider contract consumed by the auth flow and
// the session manager.
type Provider interface {
	CreateCredential(ctx context.Context, instance, email, password string) (*Identity, error)
	VerifyCredential(ctx context.Context, instance, email, password string) (*Identity, error)
	SignInFederated(ctx context.Context, instance string, grant FederatedGrant) (*Identity, error)
	SignOut(ctx context.Context, instance string) error
	Current(ctx context.Context, instance string) (*Identity, error)
	OnIdentityChange(l Listener) (unsubscribe func())
}
