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

// VolunteerHandler serves the volunteer registration form and API.
type VolunteerHandler struct {
	volunteers *service.VolunteerService
	projects   *service.ProjectService
	pages      *Pages
	logger     *slog.Logger
}

// NewVolunteerHandler creates a VolunteerHandler.
func NewVolunteerHandler(volunteers *service.VolunteerService, projects *service.ProjectService, pages *Pages, logger *slog.Logger) *VolunteerHandler {
	return &VolunteerHandler{volunteers: volunteers, projects: projects, pages: pages, logger: logger}
}

// volunteerForm is the data behind volunteer.html.
type volunteerForm struct {
	Project *model.Project
	Input   model.Volunteer
	Error   string
	Done    bool
}

// HandleFormPage renders the registration form for a project.
//
// HTTP: GET /projects/{id}/volunteer
func (h *VolunteerHandler) HandleFormPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to load project", err)
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.RenderPage(w, r, http.StatusOK, PageVolunteer, volunteerForm{Project: p})
}

// HandleFormSubmit registers the volunteer from the form.
//
// HTTP: POST /projects/{id}/volunteer
//
// On success the page shows a thank-you note in place of the form, so a
// reload does not register twice without the user seeing it.
func (h *VolunteerHandler) HandleFormSubmit(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to load project", err)
		h.pages.renderError(w, r, err)
		return
	}

	in, err := volunteerFromForm(r)
	if err == nil {
		var v *model.Volunteer
		if v, err = h.volunteers.Register(r.Context(), p.ID, in); err == nil {
			h.pages.RenderPage(w, r, http.StatusOK, PageVolunteer, volunteerForm{Project: p, Input: *v, Done: true})
			return
		}
	}

	logFailure(h.logger, "volunteer registration failed", err, slog.String("projectID", p.ID))
	status, _ := statusFor(err)
	h.pages.RenderPage(w, r, status, PageVolunteer, volunteerForm{Project: p, Input: in, Error: userMessage(err)})
}

// HandleRegister registers a volunteer through the API.
//
// HTTP: POST /api/projects/{id}/volunteers
// REQUEST BODY: {"name":"Asha","age":24,"email":"asha@example.com","phone":"9876543210",
//
//	"description":"...","location":"Pune","pincode":"411001"}
func (h *VolunteerHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in model.Volunteer
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.volunteers.Register(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		logFailure(h.logger, "volunteer registration failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleList returns every registration.
//
// HTTP: GET /api/volunteers (admin)
func (h *VolunteerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	vs, err := h.volunteers.List(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to list volunteers", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

// hoursRequest is the body of the hours endpoint.
type hoursRequest struct {
	Hours float64 `json:"hours"`
}

// HandleRecordHours sets a volunteer's hours.
//
// HTTP: PUT /api/volunteers/{id}/hours (admin)
// REQUEST BODY: {"hours": 6.5}
func (h *VolunteerHandler) HandleRecordHours(w http.ResponseWriter, r *http.Request) {
	var req hoursRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.volunteers.RecordHours(r.Context(), chi.URLParam(r, "id"), req.Hours)
	if err != nil {
		logFailure(h.logger, "failed to record hours", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// volunteerFromForm reads the registration form. The returned volunteer
// holds whatever was posted so the form can be re-filled on error.
func volunteerFromForm(r *http.Request) (model.Volunteer, error) {
	v := model.Volunteer{
		Name:        r.PostFormValue("name"),
		Email:       r.PostFormValue("email"),
		Phone:       r.PostFormValue("phone"),
		Description: r.PostFormValue("description"),
		Location:    r.PostFormValue("location"),
		Pincode:     r.PostFormValue("pincode"),
	}
	age, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("age")))
	if err != nil {
		return v, apperror.ValidationFailed("age", "please enter your age as a number")
	}
	v.Age = age
	return v, nil
}
