package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/handler"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	sqliteRepo "github.com/sakif/ngo-hub/internal/repository/sqlite"
	"github.com/sakif/ngo-hub/internal/service"
	"github.com/sakif/ngo-hub/internal/session"
	"github.com/sakif/ngo-hub/internal/store"
	"github.com/sakif/ngo-hub/internal/validate"
)

// stubProvider is a federated provider that accepts the code "good".
type stubProvider struct{}

func (stubProvider) Name() string { return "github" }

func (stubProvider) AuthCodeURL(state, verifier string) string {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (stubProvider) Exchange(_ context.Context, code, verifier string) (*auth.ExternalIdentity, error) {
	if code != "good" || verifier == "" {
		return nil, errors.New("bad code")
	}
	return &auth.ExternalIdentity{Provider: "github", Subject: "42", Email: "octo@example.com", Name: "Octo"}, nil
}

type noRefresh struct{}

func (noRefresh) Refresh(string) {}

func newAuthFixture(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	db, err := sqliteRepo.New(ctx, ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry := auth.NewRegistry(stubProvider{})
	idp := identity.NewService(db, identity.NewMemoryBindings(), auth.NewPasswordServiceForTest(4), registry, testLogger())
	docs := repository.NewDocuments(store.NewMemory())
	svc := service.NewAuthService(idp, docs, registry, noRefresh{}, validate.New(), testLogger())

	h := handler.NewAuthHandler(svc, newPages(t, session.Session{Status: session.StatusAnonymous}), auth.CookieOptions{}, testLogger())
	r := chi.NewRouter()
	r.Use(inInstance)
	r.Get("/login", h.HandleLoginPage)
	r.Post("/login", h.HandleLogin)
	r.Get("/signup", h.HandleSignupPage)
	r.Post("/signup", h.HandleSignup)
	r.Post("/logout", h.HandleLogout)
	r.Get("/auth/{provider}/login", h.HandleFederatedLogin)
	r.Get("/auth/{provider}/callback", h.HandleFederatedCallback)
	return r
}

func signupForm(email, role string) url.Values {
	return url.Values{"name": {"Rina"}, "email": {email}, "password": {"secret123"}, "role": {role}}
}

func TestAuthHandler_Pages(t *testing.T) {
	f := newAuthFixture(t)

	rr := serve(f, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `href="/auth/github/login"`)

	rr = serve(f, http.MethodGet, "/signup", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Create an account")
}

func TestAuthHandler_SignupAndLogin(t *testing.T) {
	f := newAuthFixture(t)

	t.Run("admin sign-up goes to the dashboard", func(t *testing.T) {
		rr := postForm(f, "/signup", signupForm("rina@example.com", "admin"))
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, model.RouteAdminDashboard, rr.Header().Get("Location"))
	})

	t.Run("duplicate email re-renders with input but not password", func(t *testing.T) {
		rr := postForm(f, "/signup", signupForm("rina@example.com", "volunteer"))
		assert.Equal(t, http.StatusConflict, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, `class="flash error"`)
		assert.Contains(t, body, `value="rina@example.com"`)
		assert.NotContains(t, body, "secret123")
	})

	t.Run("weak password", func(t *testing.T) {
		form := signupForm("new@example.com", "volunteer")
		form.Set("password", "123")
		rr := postForm(f, "/signup", form)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `class="flash error"`)
	})

	t.Run("invalid role", func(t *testing.T) {
		rr := postForm(f, "/signup", signupForm("other@example.com", "superuser"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login redirects by role", func(t *testing.T) {
		rr := postForm(f, "/login", url.Values{"email": {"rina@example.com"}, "password": {"secret123"}})
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, model.RouteAdminDashboard, rr.Header().Get("Location"))
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := postForm(f, "/login", url.Values{"email": {"rina@example.com"}, "password": {"nope-nope"}})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `value="rina@example.com"`)
	})

	t.Run("logout goes to login", func(t *testing.T) {
		for range 2 {
			rr := postForm(f, "/logout", nil)
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, model.RouteLogin, rr.Header().Get("Location"))
		}
	})
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Federated(t *testing.T) {
	f := newAuthFixture(t)

	start := serve(f, http.MethodGet, "/auth/github/login", nil)
	require.Equal(t, http.StatusTemporaryRedirect, start.Code)
	state := cookieNamed(start.Result().Cookies(), "oauth_state")
	verifier := cookieNamed(start.Result().Cookies(), "oauth_verifier")
	require.NotNil(t, state)
	require.NotNil(t, verifier)
	assert.True(t, state.HttpOnly)
	assert.Contains(t, start.Header().Get("Location"), url.QueryEscape(state.Value))

	callback := func(query string, withCookies bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?"+query, nil)
		if withCookies {
			req.AddCookie(state)
			req.AddCookie(verifier)
		}
		rr := httptest.NewRecorder()
		f.ServeHTTP(rr, req)
		return rr
	}

	t.Run("state mismatch is refused", func(t *testing.T) {
		rr := callback("code=good&state=forged", true)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "please try again")
	})

	t.Run("missing cookie is refused", func(t *testing.T) {
		rr := callback("code=good&state="+url.QueryEscape(state.Value), false)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("cancelled on the provider page", func(t *testing.T) {
		rr := callback("error=access_denied&state="+url.QueryEscape(state.Value), true)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "sign-in was cancelled")
	})

	t.Run("success lands on the home page as a volunteer", func(t *testing.T) {
		rr := callback("code=good&state="+url.QueryEscape(state.Value), true)
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, model.RouteLanding, rr.Header().Get("Location"))

		cleared := cookieNamed(rr.Result().Cookies(), "oauth_state")
		require.NotNil(t, cleared)
		assert.Less(t, cleared.MaxAge, 0)
	})

	t.Run("unknown provider", func(t *testing.T) {
		rr := serve(f, http.MethodGet, "/auth/myspace/login", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
