package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/guard"
	"github.com/sakif/ngo-hub/internal/handler"
	"github.com/sakif/ngo-hub/internal/middleware"
	"github.com/sakif/ngo-hub/internal/model"
)

// Handlers is everything the router mounts. New builds it from config;
// tests build it by hand around in-memory stores.
type Handlers struct {
	Tokens  *auth.TokenService
	Cookies auth.CookieOptions
	Guard   *guard.Guard
	Pages   *handler.Pages

	Auth       *handler.AuthHandler
	Session    *handler.SessionHandler
	Projects   *handler.ProjectHandler
	Volunteers *handler.VolunteerHandler
	Donations  *handler.DonationHandler
	Dashboard  *handler.DashboardHandler
	Admin      *handler.AdminHandler
	Health     *handler.HealthHandler
}

// NewRouter builds the chi router.
//
// ROUTE STRUCTURE:
// GET    /healthz                          → dependency health (JSON)
// GET    /static/*                         → embedded stylesheet
//
// public pages
// GET    /  /projects  /contactus
// GET    /login  /signup                   POST /login  /signup  /logout
// GET    /auth/{provider}/login            → redirect to the provider
// GET    /auth/{provider}/callback         → finish federated sign-in
// GET    /projects/{id}/volunteer          POST same path
//
// any signed-in identity
// GET    /profile
// GET    /projects/{id}/donate             POST same path (multipart)
// GET    /certificate/{id}                 → PDF
// GET    /donations/{id}/screenshot
//
// admin
// GET    /dashboard  /admin
// POST   /admin/projects  /admin/projects/{id}/complete  /admin/projects/{id}/delete
// POST   /admin/volunteers/{id}/hours
//
// JSON API under /api mirrors the above with JSON guard responses: 401 and
// 403 bodies instead of redirects and pages.
//
// MIDDLEWARE ORDER:
// 1. RequestID, RealIP
// 2. Logger, outside Recoverer so a recovered panic is logged as a 500
// 3. Recoverer
// 4. auth.Instance on everything except static files and health, so every
//    page and API request belongs to an application instance
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health.HandleHealth)
	r.Handle("/static/*", handler.StaticHandler())

	pages := guard.PageResponder{Pages: h.Pages}
	api := guard.JSONResponder{}

	r.Group(func(r chi.Router) {
		r.Use(auth.Instance(h.Tokens, h.Cookies, logger))
		r.Use(middleware.RecordInstance)

		// === Public pages ===
		r.Get(model.RouteLanding, h.Projects.HandleLanding)
		r.Get(model.RouteProjects, h.Projects.HandleProjectsPage)
		r.Get(model.RouteContact, h.Projects.HandleContactPage)
		r.Get("/projects/{id}/volunteer", h.Volunteers.HandleFormPage)
		r.Post("/projects/{id}/volunteer", h.Volunteers.HandleFormSubmit)

		// === Auth ===
		r.Get(model.RouteLogin, h.Auth.HandleLoginPage)
		r.Post(model.RouteLogin, h.Auth.HandleLogin)
		r.Get(model.RouteSignup, h.Auth.HandleSignupPage)
		r.Post(model.RouteSignup, h.Auth.HandleSignup)
		r.Post(model.RouteLogout, h.Auth.HandleLogout)
		r.Get("/auth/{provider}/login", h.Auth.HandleFederatedLogin)
		r.Get("/auth/{provider}/callback", h.Auth.HandleFederatedCallback)

		// === Any signed-in identity ===
		r.Group(func(r chi.Router) {
			r.Use(h.Guard.Require("", pages))
			r.Get(model.RouteProfile, h.Projects.HandleProfilePage)
			r.Get("/projects/{id}/donate", h.Donations.HandleFormPage)
			r.Post("/projects/{id}/donate", h.Donations.HandleFormSubmit)
			r.Get(model.RouteCertificate+"/{id}", h.Donations.HandleCertificate)
			r.Get("/donations/{id}/screenshot", h.Donations.HandleScreenshot)
		})

		// === Admin pages ===
		r.Group(func(r chi.Router) {
			r.Use(h.Guard.Require(model.RoleAdmin, pages))
			r.Get(model.RouteAdminDashboard, h.Dashboard.HandlePage)
			r.Get(model.RouteAdmin, h.Admin.HandlePage)
			r.Post("/admin/projects", h.Admin.HandleCreateProject)
			r.Post("/admin/projects/{id}/complete", h.Admin.HandleCompleteProject)
			r.Post("/admin/projects/{id}/delete", h.Admin.HandleDeleteProject)
			r.Post("/admin/volunteers/{id}/hours", h.Admin.HandleRecordHours)
		})

		// === JSON API ===
		r.Route("/api", func(r chi.Router) {
			r.Get("/session", h.Session.HandleGet)
			r.Get("/projects", h.Projects.HandleList)
			r.Get("/projects/{id}", h.Projects.HandleGet)
			r.Post("/projects/{id}/volunteers", h.Volunteers.HandleRegister)

			r.Group(func(r chi.Router) {
				r.Use(h.Guard.Require("", api))
				r.Get("/donations/{id}", h.Donations.HandleGet)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.Guard.Require(model.RoleAdmin, api))
				r.Post("/projects", h.Projects.HandleCreate)
				r.Put("/projects/{id}", h.Projects.HandleUpdate)
				r.Delete("/projects/{id}", h.Projects.HandleDelete)
				r.Post("/projects/{id}/complete", h.Projects.HandleComplete)
				r.Get("/volunteers", h.Volunteers.HandleList)
				r.Put("/volunteers/{id}/hours", h.Volunteers.HandleRecordHours)
				r.Get("/donations", h.Donations.HandleList)
				r.Get("/dashboard", h.Dashboard.HandleGet)
			})
		})
	})

	return r
}
