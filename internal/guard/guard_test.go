package guard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/session"
)

var (
	anonymous = session.Session{Status: session.StatusAnonymous}
	loading   = session.Session{Status: session.StatusLoading}
	volunteer = session.Session{
		Status:   session.StatusAuthenticated,
		Identity: &identity.Identity{ID: "v1"},
		Role:     model.RoleVolunteer,
	}
	admin = session.Session{
		Status:   session.StatusAuthenticated,
		Identity: &identity.Identity{ID: "a1"},
		Role:     model.RoleAdmin,
	}
	noRole = session.Session{
		Status:   session.StatusAuthenticated,
		Identity: &identity.Identity{ID: "n1"},
	}
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		session  session.Session
		required model.Role
		want     State
	}{
		{"loading admin route", loading, model.RoleAdmin, StateLoading},
		{"loading any route", loading, "", StateLoading},
		{"anonymous admin route", anonymous, model.RoleAdmin, StateUnauthenticated},
		{"anonymous any route", anonymous, "", StateUnauthenticated},
		{"volunteer admin route", volunteer, model.RoleAdmin, StateDenied},
		{"volunteer any route", volunteer, "", StateAllowed},
		{"admin admin route", admin, model.RoleAdmin, StateAllowed},
		{"admin volunteer route", admin, model.RoleVolunteer, StateDenied},
		{"no role admin route", noRole, model.RoleAdmin, StateDenied},
		{"no role any route", noRole, "", StateAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.session, tt.required))
		})
	}
}

// fakeSessions returns a fixed session, or blocks until ctx is done when
// stall is set.
type fakeSessions struct {
	s     session.Session
	stall bool
}

func (f *fakeSessions) Wait(ctx context.Context, _ string) (session.Session, error) {
	if f.stall {
		<-ctx.Done()
		return f.s, ctx.Err()
	}
	return f.s, nil
}

type fakePages struct {
	page   string
	status int
}

func (f *fakePages) RenderPage(w http.ResponseWriter, _ *http.Request, status int, page string, _ any) {
	f.page, f.status = page, status
	w.WriteHeader(status)
}

// serve runs one request for instance "inst-1" through Require(role).
func serve(t *testing.T, sessions Sessions, role model.Role, resp Responder) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	g := New(sessions, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	reached := false
	h := g.Require(role, resp)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		s, ok := FromContext(r.Context())
		require.True(t, ok, "allowed handler sees the session")
		assert.True(t, s.SignedIn())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(auth.WithInstanceID(req.Context(), "inst-1"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, reached
}

func TestRequire_AnonymousRedirectsToLogin(t *testing.T) {
	rr, reached := serve(t, &fakeSessions{s: anonymous}, model.RoleAdmin, PageResponder{Pages: &fakePages{}})

	assert.False(t, reached, "protected content must never render")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, model.RouteLogin, rr.Header().Get("Location"))
}

func TestRequire_VolunteerDeniedWithoutRedirect(t *testing.T) {
	pages := &fakePages{}
	rr, reached := serve(t, &fakeSessions{s: volunteer}, model.RoleAdmin, PageResponder{Pages: pages})

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Location"), "denied is rendered, never redirected")
	assert.Equal(t, PageDenied, pages.page)
}

func TestRequire_AdminAllowed(t *testing.T) {
	rr, reached := serve(t, &fakeSessions{s: admin}, model.RoleAdmin, PageResponder{Pages: &fakePages{}})

	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequire_StillLoadingAfterWait(t *testing.T) {
	pages := &fakePages{}
	rr, reached := serve(t, &fakeSessions{s: loading, stall: true}, model.RoleAdmin, PageResponder{Pages: pages})

	assert.False(t, reached)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Refresh"))
	assert.Equal(t, PageLoading, pages.page)
}

func TestRequire_MissingInstanceIsUnauthenticated(t *testing.T) {
	g := New(&fakeSessions{s: admin}, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := g.Require("", JSONResponder{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an instance")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJSONResponder(t *testing.T) {
	tests := []struct {
		name    string
		session session.Session
		stall   bool
		want    int
	}{
		{"anonymous", anonymous, false, http.StatusUnauthorized},
		{"volunteer", volunteer, false, http.StatusForbidden},
		{"loading", loading, true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, reached := serve(t, &fakeSessions{s: tt.session, stall: tt.stall}, model.RoleAdmin, JSONResponder{})
			assert.False(t, reached)
			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Empty(t, rr.Header().Get("Location"))
		})
	}
}

// After sign-out the session reports no identity and the guard redirects.
func TestRequire_AfterSignOutRedirects(t *testing.T) {
	sessions := &fakeSessions{s: admin}
	_, reached := serve(t, sessions, model.RoleAdmin, PageResponder{Pages: &fakePages{}})
	require.True(t, reached)

	sessions.s = anonymous
	rr, reached := serve(t, sessions, model.RoleAdmin, PageResponder{Pages: &fakePages{}})
	assert.False(t, reached)
	assert.Equal(t, model.RouteLogin, rr.Header().Get("Location"))
}
