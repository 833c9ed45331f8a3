package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
)

// DefaultRoleFetchTimeout bounds a single Role Record fetch.
const DefaultRoleFetchTimeout = 5 * time.Second

// RoleFetcher loads the Role Record for an identity. A missing record is
// reported as an apperror.ErrNotFound error.
type RoleFetcher interface {
	GetRole(ctx context.Context, identityID string) (*model.RoleRecord, error)
}

// Observer is told about every session change after it has been applied.
type Observer func(instance string, s Session)

// Manager is the only writer of session state.
//
// HOW A CHANGE FLOWS THROUGH:
//
//	identity change ──▶ onChange: gen++ ──▶ (signed out) apply Anonymous now
//	                                   └──▶ (signed in)  go resolve: fetch role ──▶ apply
//
// Every instance carries a generation counter. A resolution is applied only
// if its generation is still the latest when it finishes, so a slow role fetch
// for an old sign-in can never overwrite a newer sign-out.
//
// Readers call Current (never blocks) or Wait (blocks until the latest change
// has been applied).
//
// RE-VALIDATION:
// Notifications are not the only way a binding changes: it can expire, or be
// removed by another replica whose message never arrived. An entry resolved
// longer ago than the revalidate interval is reloaded from the provider on
// its next read, and so is an entry whose load failed. Current keeps
// returning the old snapshot meanwhile; Wait (and so the guard) waits for the
// reload.
type Manager struct {
	provider   identity.Provider
	roles      RoleFetcher
	timeout    time.Duration
	revalidate time.Duration
	logger     *slog.Logger
	now        func() time.Time

	// ctx is cancelled by Close so in-flight fetches give up.
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	observersMu sync.RWMutex
	observers   map[uint64]Observer
	nextID      uint64
}

type entry struct {
	session    Session
	gen        uint64
	pending    bool
	settled    chan struct{} // closed when the latest generation has been applied
	lastAccess time.Time
	resolvedAt time.Time
	retry      bool // the last load failed; reload on next read
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoleFetchTimeout overrides DefaultRoleFetchTimeout.
func WithRoleFetchTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithRevalidateAfter makes reads reload an entry resolved longer than d ago.
// Zero disables re-validation.
func WithRevalidateAfter(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.revalidate = d
		}
	}
}

// WithClock replaces time.Now, for eviction tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager subscribes to the provider's identity changes. Call Close to
// unsubscribe.
func NewManager(provider identity.Provider, roles RoleFetcher, logger *slog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		provider:  provider,
		roles:     roles,
		timeout:   DefaultRoleFetchTimeout,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[string]*entry),
		observers: make(map[uint64]Observer),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = provider.OnIdentityChange(m.onChange)
	return m
}

// Current returns the instance's session without blocking. The first call
// for an unknown instance starts loading it from the provider and returns a
// Loading session.
func (m *Manager) Current(instance string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[instance]
	if !ok {
		if m.closed {
			return Session{Status: StatusLoading}
		}
		e = m.newEntryLocked(instance)
		m.reloadLocked(instance, e)
	} else if !m.closed && !e.pending && m.dueLocked(e) {
		m.reloadLocked(instance, e)
	}
	e.lastAccess = m.now()
	return e.session
}

// Wait blocks until the latest change for the instance has been applied, or
// ctx is done. On ctx expiry it returns the current snapshot and ctx.Err().
func (m *Manager) Wait(ctx context.Context, instance string) (Session, error) {
	m.Current(instance)

	for {
		m.mu.Lock()
		e := m.entries[instance]
		if e == nil || !e.pending {
			var s Session
			if e != nil {
				s = e.session
			} else {
				s = Session{Status: StatusLoading}
			}
			m.mu.Unlock()
			return s, nil
		}
		ch := e.settled
		snapshot := e.session
		m.mu.Unlock()

		select {
		case <-ch:
			// Loop: a newer change may have started while we woke up.
		case <-ctx.Done():
			return snapshot, ctx.Err()
		}
	}
}

// Watch registers fn for every applied change and returns an unsubscribe func.
func (m *Manager) Watch(fn Observer) func() {
	m.observersMu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.observersMu.Unlock()

	return func() {
		m.observersMu.Lock()
		delete(m.observers, id)
		m.observersMu.Unlock()
	}
}

// Evict forgets instances that have not been read for idle and have nothing
// pending. A forgotten instance is reloaded from the provider on next access.
// Returns how many were dropped.
func (m *Manager) Evict(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for instance, e := range m.entries {
		if !e.pending && e.lastAccess.Before(cutoff) {
			delete(m.entries, instance)
			dropped++
		}
	}
	return dropped
}

// Refresh re-reads an instance's identity and role as if the provider had
// just notified a change. The auth flow calls it after writing a Role Record,
// because the sign-in notification fired before the record existed.
// Instances the manager has never seen are left alone.
func (m *Manager) Refresh(instance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[instance]
	if m.closed || !ok {
		return
	}
	m.reloadLocked(instance, e)
}

// Close unsubscribes from the provider. Fetches still in flight are
// cancelled and their results discarded; blocked Wait calls return.
func (m *Manager) Close() {
	m.unsubscribe()
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, e := range m.entries {
		if e.pending {
			e.pending = false
			close(e.settled)
		}
	}
}

// onChange is the provider listener. It never blocks: role fetches run on
// their own goroutine.
func (m *Manager) onChange(c identity.Change) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	e, ok := m.entries[c.Instance]
	if !ok && c.Remote {
		// Never read here; it loads from the shared binding when it is.
		m.mu.Unlock()
		return
	}
	if !ok {
		e = m.newEntryLocked(c.Instance)
		e.lastAccess = m.now()
	}
	e.gen++
	gen := e.gen
	if !e.pending {
		e.pending = true
		e.settled = make(chan struct{})
	}
	m.mu.Unlock()

	if c.Identity == nil {
		m.apply(c.Instance, gen, Session{Status: StatusAnonymous}, false)
		return
	}
	go m.resolve(c.Instance, gen, c.Identity)
}

// load reads the instance's identity from the provider, then its role.
func (m *Manager) load(instance string, gen uint64) {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	id, err := m.provider.Current(ctx, instance)
	cancel()

	if err != nil {
		if m.ctx.Err() != nil {
			return // closed while loading
		}
		// Without the provider there is no identity we can vouch for, but the
		// failure may be transient: the next read tries again.
		m.logger.Warn("loading current identity failed; treating instance as anonymous",
			slog.String("instance", instance),
			slog.String("error", err.Error()),
		)
		m.apply(instance, gen, Session{Status: StatusAnonymous}, true)
		return
	}
	if id == nil {
		m.apply(instance, gen, Session{Status: StatusAnonymous}, false)
		return
	}
	m.resolve(instance, gen, id)
}

// resolve fetches the Role Record and applies the resulting session.
// A missing or unreadable record yields an Authenticated session with no
// role; no default role is ever invented here.
func (m *Manager) resolve(instance string, gen uint64, id *identity.Identity) {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()

	s := Session{Status: StatusAuthenticated, Identity: id}

	rec, err := m.roles.GetRole(ctx, id.ID)
	switch {
	case err == nil:
		s.Role = rec.Role
	case errors.Is(err, apperror.ErrNotFound):
		m.logger.Warn("role record missing for identity",
			slog.String("identityID", id.ID),
			slog.String("instance", instance),
		)
	default:
		if m.ctx.Err() != nil {
			return // closed while fetching
		}
		m.logger.Error("fetching role record failed",
			slog.String("identityID", id.ID),
			slog.String("instance", instance),
			slog.String("error", err.Error()),
		)
	}

	m.apply(instance, gen, s, false)
}

// apply stores s if gen is still the instance's latest generation. retry
// marks the result as provisional so the next read reloads it.
func (m *Manager) apply(instance string, gen uint64, s Session, retry bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	e, ok := m.entries[instance]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		m.logger.Debug("discarding stale session resolution",
			slog.String("instance", instance),
			slog.Uint64("generation", gen),
		)
		return
	}
	e.session = s
	e.pending = false
	e.resolvedAt = m.now()
	e.retry = retry
	close(e.settled)
	m.mu.Unlock()

	m.observersMu.RLock()
	observers := make([]Observer, 0, len(m.observers))
	for _, o := range m.observers {
		observers = append(observers, o)
	}
	m.observersMu.RUnlock()

	for _, o := range observers {
		o(instance, s)
	}
}

// reloadLocked starts a new generation that re-reads identity and role.
// Must be called with mu held.
func (m *Manager) reloadLocked(instance string, e *entry) {
	e.gen++
	if !e.pending {
		e.pending = true
		e.settled = make(chan struct{})
	}
	go m.load(instance, e.gen)
}

// dueLocked reports whether a settled entry should be reloaded on read.
// Must be called with mu held.
func (m *Manager) dueLocked(e *entry) bool {
	if e.retry {
		return true
	}
	return m.revalidate > 0 && m.now().Sub(e.resolvedAt) >= m.revalidate
}

// newEntryLocked must be called with mu held.
func (m *Manager) newEntryLocked(instance string) *entry {
	e := &entry{
		session: Session{Status: StatusLoading},
		settled: make(chan struct{}),
	}
	m.entries[instance] = e
	return e
}
