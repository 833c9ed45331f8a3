package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/service"
)

// AdminHandler serves the /admin management page. Every route sits behind
// the admin guard.
//
// POST-REDIRECT-GET:
// Each successful form post answers 303 See Other back to /admin, so a
// browser reload repeats the GET and never the write. A failed post
// re-renders the page with the message and the project form still filled in.
type AdminHandler struct {
	projects   *service.ProjectService
	volunteers *service.VolunteerService
	pages      *Pages
	logger     *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(projects *service.ProjectService, volunteers *service.VolunteerService, pages *Pages, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{projects: projects, volunteers: volunteers, pages: pages, logger: logger}
}

// adminView is the data behind admin.html.
type adminView struct {
	Error      string
	Input      service.ProjectInput
	Projects   []model.Project
	Volunteers []model.Volunteer
}

// HandlePage renders the management page.
//
// HTTP: GET /admin
func (h *AdminHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, adminView{})
}

// HandleCreateProject creates a project from the form.
//
// HTTP: POST /admin/projects
func (h *AdminHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	in := service.ProjectInput{
		Title:       r.PostFormValue("title"),
		Venue:       r.PostFormValue("venue"),
		Date:        r.PostFormValue("date"),
		Coordinator: r.PostFormValue("coordinator"),
		Details:     r.PostFormValue("details"),
	}
	if _, err := h.projects.Create(r.Context(), in); err != nil {
		h.fail(w, r, "failed to create project", err, in)
		return
	}
	http.Redirect(w, r, model.RouteAdmin, http.StatusSeeOther)
}

// HandleCompleteProject marks a project completed.
//
// HTTP: POST /admin/projects/{id}/complete
func (h *AdminHandler) HandleCompleteProject(w http.ResponseWriter, r *http.Request) {
	if _, err := h.projects.Complete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "failed to complete project", err, service.ProjectInput{})
		return
	}
	http.Redirect(w, r, model.RouteAdmin, http.StatusSeeOther)
}

// HandleDeleteProject removes a project. HTML forms cannot send DELETE,
// hence the POST route.
//
// HTTP: POST /admin/projects/{id}/delete
func (h *AdminHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "failed to delete project", err, service.ProjectInput{})
		return
	}
	http.Redirect(w, r, model.RouteAdmin, http.StatusSeeOther)
}

// HandleRecordHours saves a volunteer's hours.
//
// HTTP: POST /admin/volunteers/{id}/hours (form: hours)
func (h *AdminHandler) HandleRecordHours(w http.ResponseWriter, r *http.Request) {
	hours, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("hours")), 64)
	if err != nil {
		h.fail(w, r, "invalid hours", apperror.ValidationFailed("hours", "please enter the hours as a number"), service.ProjectInput{})
		return
	}
	if _, err := h.volunteers.RecordHours(r.Context(), chi.URLParam(r, "id"), hours); err != nil {
		h.fail(w, r, "failed to record hours", err, service.ProjectInput{})
		return
	}
	http.Redirect(w, r, model.RouteAdmin, http.StatusSeeOther)
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, in service.ProjectInput) {
	logFailure(h.logger, msg, err)
	status, _ := statusFor(err)
	h.render(w, r, status, adminView{Error: userMessage(err), Input: in})
}

// render fills in the project and volunteer tables and draws the page.
func (h *AdminHandler) render(w http.ResponseWriter, r *http.Request, status int, view adminView) {
	list, err := h.projects.List(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to list projects", err)
		h.pages.renderError(w, r, err)
		return
	}
	view.Projects = append(list.Upcoming, list.Completed...)

	view.Volunteers, err = h.volunteers.List(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to list volunteers", err)
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.RenderPage(w, r, status, PageAdmin, view)
}
