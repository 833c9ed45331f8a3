package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ngo-hub/internal/service"
)

// ProjectHandler serves the public pages and the project JSON API.
//
// Pages read projects for anyone; writes are mounted behind the admin guard
// in the router, so nothing here checks roles.
type ProjectHandler struct {
	projects *service.ProjectService
	pages    *Pages
	logger   *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(projects *service.ProjectService, pages *Pages, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, pages: pages, logger: logger}
}

// HandleLanding renders the home page with the upcoming projects.
//
// HTTP: GET /
//
// The landing page still renders when the project list fails to load; the
// hero section does not depend on it.
func (h *ProjectHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list projects for landing page", slog.String("error", err.Error()))
		h.pages.RenderPage(w, r, http.StatusOK, PageLanding, nil)
		return
	}
	h.pages.RenderPage(w, r, http.StatusOK, PageLanding, list)
}

// HandleProjectsPage renders upcoming and completed projects.
//
// HTTP: GET /projects
func (h *ProjectHandler) HandleProjectsPage(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.List(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to list projects", err)
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.RenderPage(w, r, http.StatusOK, PageProjects, list)
}

// HandleContactPage renders the static contact page.
//
// HTTP: GET /contactus
func (h *ProjectHandler) HandleContactPage(w http.ResponseWriter, r *http.Request) {
	h.pages.RenderPage(w, r, http.StatusOK, PageContact, nil)
}

// HandleProfilePage renders the signed-in user's profile.
//
// HTTP: GET /profile (any signed-in role)
func (h *ProjectHandler) HandleProfilePage(w http.ResponseWriter, r *http.Request) {
	h.pages.RenderPage(w, r, http.StatusOK, PageProfile, nil)
}

// HandleList returns all projects split by status.
//
// HTTP: GET /api/projects
//
// RESPONSE FORMAT:
//
//	{"upcoming": [{"id":"...","title":"..."}], "completed": [...]}
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.List(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to list projects", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet returns one project.
//
// HTTP: GET /api/projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to get project", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCreate adds a project.
//
// HTTP: POST /api/projects (admin)
// REQUEST BODY: {"title":"Tree Plantation","venue":"Dhanmondi","date":"2024-06-01","coordinator":"Rina","details":"..."}
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.projects.Create(r.Context(), in)
	if err != nil {
		logFailure(h.logger, "failed to create project", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate replaces a project's editable fields.
//
// HTTP: PUT /api/projects/{id} (admin)
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.projects.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		logFailure(h.logger, "failed to update project", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleComplete marks a project completed.
//
// HTTP: POST /api/projects/{id}/complete (admin)
func (h *ProjectHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to complete project", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a project.
//
// HTTP: DELETE /api/projects/{id} (admin)
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		logFailure(h.logger, "failed to delete project", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent) // 204 No Content
}
