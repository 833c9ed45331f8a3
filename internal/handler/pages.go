package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/certificate"
	"github.com/sakif/ngo-hub/internal/guard"
	"github.com/sakif/ngo-hub/internal/nav"
	"github.com/sakif/ngo-hub/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names. PageDenied and PageLoading come from the guard.
const (
	PageLanding   = "landing"
	PageAuth      = "auth"
	PageProjects  = "projects"
	PageContact   = "contact"
	PageProfile   = "profile"
	PageDashboard = "dashboard"
	PageAdmin     = "admin"
	PageVolunteer = "volunteer"
	PageDonate    = "donate"
	PageError     = "error"
)

var pageTitles = map[string]string{
	PageLanding:       "Home",
	PageAuth:          "Sign in",
	PageProjects:      "Projects",
	PageContact:       "Contact Us",
	PageProfile:       "Profile",
	PageDashboard:     "Dashboard",
	PageAdmin:         "Admin",
	PageVolunteer:     "Volunteer",
	PageDonate:        "Donate",
	PageError:         "Something went wrong",
	guard.PageDenied:  "Access Denied",
	guard.PageLoading: "Loading",
}

// SessionReader is the non-blocking view of the session manager that page
// rendering needs.
type SessionReader interface {
	Current(instance string) session.Session
}

// Pages renders the portal's HTML pages. It implements guard.PageRenderer.
//
// TEMPLATE COMPOSITION:
// base.html defines the layout and calls {{template "content" .}}; every page
// file defines "content". Each page is parsed into its own clone of the
// layout at startup so "content" never collides between pages.
type Pages struct {
	pages    map[string]*template.Template
	sessions SessionReader
	site     string
	logger   *slog.Logger
}

var _ guard.PageRenderer = (*Pages)(nil)

// pageView is the root object every template receives.
type pageView struct {
	Site    string
	Title   string
	Menu    nav.Menu
	Session session.Session
	Data    any
}

// NewPages parses the embedded templates.
func NewPages(sessions SessionReader, site string, logger *slog.Logger) (*Pages, error) {
	funcs := template.FuncMap{
		"amount": certificate.FormatAmount,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2 Jan 2006")
		},
	}

	base, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("handler: parsing layout: %w", err)
	}

	p := &Pages{pages: make(map[string]*template.Template), sessions: sessions, site: site, logger: logger}
	for name := range pageTitles {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("handler: cloning layout: %w", err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("handler: parsing page %s: %w", name, err)
		}
		p.pages[name] = clone
	}
	return p, nil
}

// RenderPage renders page inside the layout with the caller's session and
// navigation menu. Rendering goes to a buffer first so a template error
// becomes a clean 500 instead of half a page.
func (p *Pages) RenderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	tmpl, ok := p.pages[page]
	if !ok {
		p.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s := p.sessionFor(r)
	view := pageView{
		Site:    p.site,
		Title:   pageTitles[page],
		Menu:    nav.Build(s),
		Session: s,
		Data:    data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", view); err != nil {
		p.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows err on the error page with its mapped status.
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	p.RenderPage(w, r, status, PageError, userMessage(err))
}

// sessionFor prefers the session the guard already settled for this request.
func (p *Pages) sessionFor(r *http.Request) session.Session {
	if s, ok := guard.FromContext(r.Context()); ok {
		return s
	}
	if instance, ok := auth.InstanceFromContext(r.Context()); ok && p.sessions != nil {
		return p.sessions.Current(instance)
	}
	return session.Session{Status: session.StatusLoading}
}
