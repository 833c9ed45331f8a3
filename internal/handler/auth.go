package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/service"
)

// Short-lived cookies that carry the federated flow across the redirect.
const (
	stateCookie    = "oauth_state"
	verifierCookie = "oauth_verifier"
	flowCookieAge  = 600 // 10 minutes
)

// AuthHandler serves the sign-in and sign-up forms, sign-out, and the
// federated login round trip.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLoginPage / HandleSignupPage   → render the forms
//   - HandleLogin / HandleSignup           → run the flow, redirect or re-render
//   - HandleLogout                         → sign out, redirect to /login
//   - HandleFederatedLogin                 → redirect to the provider
//   - HandleFederatedCallback              → finish the provider round trip
//
// A failed action re-renders the same form with a flash message and the
// user's input, minus the password.
type AuthHandler struct {
	auth    *service.AuthService
	pages   *Pages
	cookies auth.CookieOptions
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, pages *Pages, cookies auth.CookieOptions, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, pages: pages, cookies: cookies, logger: logger}
}

// authForm is the data behind auth.html.
type authForm struct {
	Signup    bool
	Name      string
	Email     string
	Role      string
	Error     string
	Field     string
	Providers []string
}

// HandleLoginPage renders the sign-in form.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.pages.RenderPage(w, r, http.StatusOK, PageAuth, authForm{Providers: h.auth.FederatedProviders()})
}

// HandleSignupPage renders the sign-up form.
//
// HTTP: GET /signup
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.pages.RenderPage(w, r, http.StatusOK, PageAuth, authForm{
		Signup:    true,
		Role:      string(model.RoleVolunteer),
		Providers: h.auth.FederatedProviders(),
	})
}

// HandleLogin verifies the credential and redirects by role.
//
// HTTP: POST /login (form: email, password)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	instance, ok := requireInstance(w, r, h.logger)
	if !ok {
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))

	result, err := h.auth.Login(r.Context(), instance, email, r.PostFormValue("password"))
	if err != nil {
		logFailure(h.logger, "login failed", err)
		h.formError(w, r, authForm{Email: email}, err)
		return
	}
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

// HandleSignup creates the account and its Role Record.
//
// HTTP: POST /signup (form: name, email, password, role)
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	instance, ok := requireInstance(w, r, h.logger)
	if !ok {
		return
	}
	in := service.SignUpInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     model.Role(r.PostFormValue("role")),
	}

	result, err := h.auth.SignUp(r.Context(), instance, in)
	if err != nil {
		logFailure(h.logger, "sign-up failed", err)
		h.formError(w, r, authForm{Signup: true, Name: in.Name, Email: in.Email, Role: string(in.Role)}, err)
		return
	}
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

// HandleLogout signs the instance out. Signing out twice is fine.
//
// HTTP: POST /logout
//
// POST, not GET: a link prefetch must not sign anyone out.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	instance, ok := requireInstance(w, r, h.logger)
	if !ok {
		return
	}
	to, err := h.auth.SignOut(r.Context(), instance)
	if err != nil {
		logFailure(h.logger, "sign-out failed", err)
		h.pages.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// HandleFederatedLogin sends the browser to the provider's consent page.
//
// HTTP: GET /auth/{provider}/login
//
// CSRF PROTECTION VIA STATE:
// The random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when the two match, which
// proves this server started the flow. The PKCE verifier rides along in a
// second cookie so the code is useless to anyone who intercepts it.
func (h *AuthHandler) HandleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	start, err := h.auth.BeginFederated(chi.URLParam(r, "provider"))
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	h.setFlowCookie(w, stateCookie, start.State, flowCookieAge)
	h.setFlowCookie(w, verifierCookie, start.Verifier, flowCookieAge)
	http.Redirect(w, r, start.URL, http.StatusTemporaryRedirect)
}

// HandleFederatedCallback completes the round trip.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy (or &error=access_denied)
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Clear the single-use flow cookies
//  3. Hand code, verifier and any provider error to the auth flow
//  4. Redirect to the landing page, or back to /login with a message
func (h *AuthHandler) HandleFederatedCallback(w http.ResponseWriter, r *http.Request) {
	instance, ok := requireInstance(w, r, h.logger)
	if !ok {
		return
	}
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || q.Get("state") != state.Value {
		h.logger.Warn("federated callback: state mismatch", slog.String("provider", provider))
		h.formError(w, r, authForm{}, apperror.ValidationFailed("state", "your sign-in attempt expired, please try again"))
		return
	}
	verifier, _ := r.Cookie(verifierCookie)

	h.setFlowCookie(w, stateCookie, "", -1)
	h.setFlowCookie(w, verifierCookie, "", -1)

	grant := identity.FederatedGrant{Provider: provider, Code: q.Get("code"), Error: q.Get("error")}
	if verifier != nil {
		grant.Verifier = verifier.Value
	}

	result, err := h.auth.SignInWithFederatedProvider(r.Context(), instance, grant)
	if err != nil {
		logFailure(h.logger, "federated sign-in failed", err, slog.String("provider", provider))
		h.formError(w, r, authForm{}, err)
		return
	}
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

// formError re-renders the form with err as a flash message.
func (h *AuthHandler) formError(w http.ResponseWriter, r *http.Request, form authForm, err error) {
	status, _ := statusFor(err)
	form.Error = userMessage(err)
	if appErr := asAppError(err); appErr != nil {
		form.Field = appErr.Field
	}
	form.Providers = h.auth.FederatedProviders()
	h.pages.RenderPage(w, r, status, PageAuth, form)
}

func (h *AuthHandler) setFlowCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireInstance reads the application instance set by auth.Instance.
// Its absence means the middleware is not wired, which is a server bug.
func requireInstance(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	instance, ok := auth.InstanceFromContext(r.Context())
	if !ok {
		logger.Error("request without application instance", slog.String("path", r.URL.Path))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return "", false
	}
	return instance, true
}
