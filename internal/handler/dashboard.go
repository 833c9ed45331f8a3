package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/nav"
	"github.com/sakif/ngo-hub/internal/service"
	"github.com/sakif/ngo-hub/internal/session"
)

// DashboardHandler serves the admin dashboard as a page and as JSON.
type DashboardHandler struct {
	dashboard *service.DashboardService
	pages     *Pages
	logger    *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService, pages *Pages, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, pages: pages, logger: logger}
}

// HandlePage renders the dashboard.
//
// HTTP: GET /dashboard (admin)
func (h *DashboardHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Build(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to build dashboard", err)
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.RenderPage(w, r, http.StatusOK, PageDashboard, d)
}

// HandleGet returns the dashboard data.
//
// HTTP: GET /api/dashboard (admin)
func (h *DashboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard.Build(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to build dashboard", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SessionHandler exposes the caller's session to scripts on the page.
type SessionHandler struct {
	sessions SessionReader
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionReader) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// sessionResponse is the body of GET /api/session.
type sessionResponse struct {
	Session session.Session `json:"session"`
	Menu    nav.Menu        `json:"menu"`
}

// HandleGet returns the instance's current session and menu.
//
// HTTP: GET /api/session
//
// RESPONSE FORMAT:
//
//	{"session": {"status": "authenticated", "identity": {...}, "role": "admin"},
//	 "menu": {"entries": [...], "control": {"kind": "sign-out", ...}}}
//
// It never waits: a session that is still loading is reported as such, and
// the caller polls again.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s := session.Session{Status: session.StatusLoading}
	if instance, ok := auth.InstanceFromContext(r.Context()); ok {
		s = h.sessions.Current(instance)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sessionResponse{Session: s, Menu: nav.Build(s)})
}
