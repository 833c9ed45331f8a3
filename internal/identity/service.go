package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/auth"
)

// compile-time check that *Service implements Provider
var _ Provider = (*Service)(nil)

// Service is the in-process Identity Provider.
//
// NOTIFICATION ORDERING:
// A change is announced only after its binding write has settled, and
// changeMu is held across "write binding → notify listeners". Two concurrent
// sign-ins on the same instance therefore reach listeners in the same order
// their writes hit the binding store, so the last notification always matches
// the stored binding.
//
// REPLICAS:
// With a ChangeFeed attached (UseFeed), every local change is also published
// while changeMu is still held, and changes published by other replicas are
// re-read from the shared BindingStore and announced as Remote changes.
type Service struct {
	accounts  CredentialRepository
	bindings  BindingStore
	passwords *auth.PasswordService
	federated *auth.Registry
	logger    *slog.Logger

	changeMu sync.Mutex
	origin   string
	feed     ChangeFeed

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// NewService wires the provider. federated may be nil when no federated
// provider is configured.
func NewService(
	accounts CredentialRepository,
	bindings BindingStore,
	passwords *auth.PasswordService,
	federated *auth.Registry,
	logger *slog.Logger,
) *Service {
	if federated == nil {
		federated = auth.NewRegistry()
	}
	return &Service{
		accounts:  accounts,
		bindings:  bindings,
		passwords: passwords,
		federated: federated,
		logger:    logger,
		origin:    xid.New().String(),
		listeners: make(map[uint64]Listener),
	}
}

// relayTimeout bounds publishing a change and re-reading a remote one.
const relayTimeout = 2 * time.Second

// UseFeed attaches a change feed shared with the other replicas. The
// returned func detaches it.
func (s *Service) UseFeed(ctx context.Context, feed ChangeFeed) (func() error, error) {
	stop, err := feed.Subscribe(ctx, s.relay)
	if err != nil {
		return nil, err
	}

	s.changeMu.Lock()
	s.feed = feed
	s.changeMu.Unlock()

	return func() error {
		s.changeMu.Lock()
		s.feed = nil
		s.changeMu.Unlock()
		return stop()
	}, nil
}

// CreateCredential registers a password account and signs the instance in
// as the new identity.
func (s *Service) CreateCredential(ctx context.Context, instance, email, password string) (*Identity, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return nil, err
	}

	if err := s.passwords.CheckPolicy(password); err != nil {
		return nil, apperror.Credential(apperror.CodeWeakPassword, strings.TrimPrefix(err.Error(), "auth: "))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("identity: hashing password: %w", err)
	}

	acct := &Account{
		ID:           xid.New().String(),
		Provider:     ProviderPassword,
		Subject:      email,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Credential(apperror.CodeDuplicateEmail, "an account with this email already exists")
		}
		return nil, apperror.Network("could not create account", err)
	}

	s.logger.Info("credential created", slog.String("identityID", acct.ID))

	id := acct.Identity()
	if err := s.signIn(ctx, instance, id); err != nil {
		return nil, err
	}
	return id, nil
}

// VerifyCredential checks an email/password pair and signs the instance in.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) VerifyCredential(ctx context.Context, instance, email, password string) (*Identity, error) {
	invalid := apperror.Credential(apperror.CodeInvalidCredential, "invalid email or password")

	email, err := normaliseEmail(email)
	if err != nil {
		return nil, invalid
	}

	acct, err := s.accounts.AccountBySubject(ctx, ProviderPassword, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, apperror.Network("could not verify credentials", err)
	}

	if err := s.passwords.Verify(acct.PasswordHash, password); err != nil {
		return nil, invalid
	}

	id := acct.Identity()
	if err := s.signIn(ctx, instance, id); err != nil {
		return nil, err
	}
	return id, nil
}

// SignInFederated finishes a federated sign-in: it exchanges the grant with
// the named provider, finds or creates the account for the returned subject,
// and signs the instance in.
//
// The identity ID is stable across sign-ins; profile fields (name, avatar,
// email) are refreshed from the provider each time.
func (s *Service) SignInFederated(ctx context.Context, instance string, grant FederatedGrant) (*Identity, error) {
	if grant.Error != "" {
		if grant.Error == "access_denied" {
			return nil, apperror.Credential(apperror.CodeCancelled, "sign-in was cancelled")
		}
		return nil, apperror.Credential(apperror.CodeInvalidCredential, "the provider rejected the sign-in: "+grant.Error)
	}
	if grant.Code == "" {
		return nil, apperror.Credential(apperror.CodeInvalidCredential, "missing authorization code")
	}

	provider, err := s.federated.Get(grant.Provider)
	if err != nil {
		return nil, apperror.NotFound("provider", grant.Provider)
	}

	ext, err := provider.Exchange(ctx, grant.Code, grant.Verifier)
	if err != nil {
		return nil, apperror.Network("could not complete sign-in with "+grant.Provider, err)
	}

	acct, err := s.upsertFederated(ctx, ext)
	if err != nil {
		return nil, err
	}

	id := acct.Identity()
	if err := s.signIn(ctx, instance, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *Service) upsertFederated(ctx context.Context, ext *auth.ExternalIdentity) (*Account, error) {
	providerType := ProviderType(ext.Provider)

	acct, err := s.accounts.AccountBySubject(ctx, providerType, ext.Subject)
	switch {
	case err == nil:
		acct.Email = ext.Email
		acct.DisplayName = ext.Name
		acct.AvatarURL = ext.AvatarURL
		if err := s.accounts.UpdateProfile(ctx, acct); err != nil {
			// Stale profile fields are harmless; the sign-in still succeeds.
			s.logger.Warn("refreshing federated profile failed",
				slog.String("identityID", acct.ID),
				slog.String("error", err.Error()),
			)
		}
		return acct, nil

	case errors.Is(err, apperror.ErrNotFound):
		acct = &Account{
			ID:          xid.New().String(),
			Provider:    providerType,
			Subject:     ext.Subject,
			Email:       ext.Email,
			DisplayName: ext.Name,
			AvatarURL:   ext.AvatarURL,
		}
		if err := s.accounts.CreateAccount(ctx, acct); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				// Lost a race with a concurrent first sign-in of the same subject.
				return s.accounts.AccountBySubject(ctx, providerType, ext.Subject)
			}
			return nil, apperror.Network("could not create account", err)
		}
		s.logger.Info("federated account created",
			slog.String("identityID", acct.ID),
			slog.String("provider", ext.Provider),
		)
		return acct, nil

	default:
		return nil, apperror.Network("could not look up account", err)
	}
}

// SignOut unbinds the instance. Signing out an anonymous instance succeeds
// and announces the (unchanged) anonymous state.
func (s *Service) SignOut(ctx context.Context, instance string) error {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	if err := s.bindings.Unbind(ctx, instance); err != nil {
		return err
	}
	s.notify(Change{Instance: instance})
	s.publish(ctx, instance)
	return nil
}

// Current returns the identity the instance is signed in as, or nil.
func (s *Service) Current(ctx context.Context, instance string) (*Identity, error) {
	identityID, err := s.bindings.Lookup(ctx, instance)
	if err != nil {
		return nil, err
	}
	if identityID == "" {
		return nil, nil
	}

	acct, err := s.accounts.AccountByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// The account behind the binding is gone; treat the instance as signed out.
			s.logger.Warn("binding points at missing account",
				slog.String("instance", instance),
				slog.String("identityID", identityID),
			)
			return nil, nil
		}
		return nil, apperror.Network("could not load identity", err)
	}
	return acct.Identity(), nil
}

// OnIdentityChange registers l and returns a func that unregisters it.
// Calling the returned func more than once is harmless.
func (s *Service) OnIdentityChange(l Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Service) signIn(ctx context.Context, instance string, id *Identity) error {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	if err := s.bindings.Bind(ctx, instance, id.ID); err != nil {
		return err
	}
	s.notify(Change{Instance: instance, Identity: id})
	s.publish(ctx, instance)
	return nil
}

// publish tells the other replicas about a change. The binding is already
// written, so a failed publish is logged and the change stands; the other
// replicas catch up when they re-validate. Must be called with changeMu held.
func (s *Service) publish(ctx context.Context, instance string) {
	if s.feed == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayTimeout)
	defer cancel()

	if err := s.feed.Publish(ctx, RemoteChange{Origin: s.origin, Instance: instance}); err != nil {
		s.logger.Warn("publishing identity change failed",
			slog.String("instance", instance),
			slog.String("error", err.Error()),
		)
	}
}

// relay announces a change made by another replica. The binding is re-read
// rather than taken from the message; if it cannot be read the instance is
// announced as signed out.
func (s *Service) relay(c RemoteChange) {
	if c.Origin == s.origin {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()

	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	id, err := s.Current(ctx, c.Instance)
	if err != nil {
		s.logger.Warn("reading relayed identity change failed; treating instance as signed out",
			slog.String("instance", c.Instance),
			slog.String("error", err.Error()),
		)
		id = nil
	}
	s.notify(Change{Instance: c.Instance, Identity: id, Remote: true})
}

// notify must be called with changeMu held.
func (s *Service) notify(c Change) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(c)
	}
}

func normaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email must be a valid email address")
	}
	return email, nil
}
