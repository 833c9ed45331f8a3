// Package guard puts role checks in front of protected routes.
//
// EVALUATION:
//
//	session Loading                          → StateLoading
//	session resolved, no identity            → StateUnauthenticated (redirect to /login)
//	identity present, role ≠ required role   → StateDenied (access-denied page, never a redirect)
//	identity present, role satisfies require → StateAllowed
//
// A required role of "" means "any signed-in identity".
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/session"
)

// State is the outcome of evaluating a session against a route's requirement.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateDenied
	StateAllowed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateDenied:
		return "denied"
	case StateAllowed:
		return "allowed"
	}
	return "unknown"
}

// Evaluate is a pure function of the session and the required role.
func Evaluate(s session.Session, required model.Role) State {
	if !s.Resolved() {
		return StateLoading
	}
	if !s.SignedIn() {
		return StateUnauthenticated
	}
	if required != "" && s.Role != required {
		return StateDenied
	}
	return StateAllowed
}

// DefaultSettleTimeout is how long Require waits for a pending session change
// before answering with the loading response.
const DefaultSettleTimeout = 3 * time.Second

// Sessions is the read side of the session manager.
type Sessions interface {
	Wait(ctx context.Context, instance string) (session.Session, error)
}

// Responder renders the non-allowed outcomes.
type Responder interface {
	Unauthenticated(w http.ResponseWriter, r *http.Request)
	Denied(w http.ResponseWriter, r *http.Request, s session.Session)
	Loading(w http.ResponseWriter, r *http.Request)
}

// Guard builds route-protecting middleware.
type Guard struct {
	sessions Sessions
	timeout  time.Duration
	logger   *slog.Logger
}

// New returns a Guard. A zero timeout selects DefaultSettleTimeout.
func New(sessions Sessions, timeout time.Duration, logger *slog.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	return &Guard{sessions: sessions, timeout: timeout, logger: logger}
}

// Require returns chi-compatible middleware that lets the request through
// only when the instance's session satisfies role. The allowed session is
// stored in the request context (see FromContext).
//
// It must run after auth.Instance.
func (g *Guard) Require(role model.Role, resp Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			instance, ok := auth.InstanceFromContext(r.Context())
			if !ok {
				resp.Unauthenticated(w, r)
				return
			}

			s := g.settle(r.Context(), instance)

			switch Evaluate(s, role) {
			case StateAllowed:
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
			case StateUnauthenticated:
				resp.Unauthenticated(w, r)
			case StateDenied:
				g.logger.Info("access denied",
					slog.String("path", r.URL.Path),
					slog.String("identityID", s.Identity.ID),
					slog.String("role", string(s.Role)),
					slog.String("required", string(role)),
				)
				resp.Denied(w, r, s)
			default:
				resp.Loading(w, r)
			}
		})
	}
}

// settle waits for the instance's latest change, bounded by the guard's
// timeout and the request's own context.
func (g *Guard) settle(ctx context.Context, instance string) session.Session {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s, err := g.sessions.Wait(ctx, instance)
	if err != nil {
		g.logger.Warn("session did not settle in time",
			slog.String("instance", instance),
			slog.String("error", err.Error()),
		)
	}
	return s
}

type contextKey string

const sessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session stored by Require.
func FromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(session.Session)
	return s, ok
}
