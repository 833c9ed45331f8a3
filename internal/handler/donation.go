package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/certificate"
	"github.com/sakif/ngo-hub/internal/guard"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/service"
	"github.com/sakif/ngo-hub/internal/session"
)

// multipartSlack covers the form fields and boundaries around the file.
const multipartSlack = 1 << 20

// DonationHandler serves the donation form, certificates and screenshots.
// Every route is mounted behind a signed-in guard; the service decides who
// may see which donation.
type DonationHandler struct {
	donations *service.DonationService
	projects  *service.ProjectService
	pages     *Pages
	logger    *slog.Logger
}

// NewDonationHandler creates a DonationHandler.
func NewDonationHandler(donations *service.DonationService, projects *service.ProjectService, pages *Pages, logger *slog.Logger) *DonationHandler {
	return &DonationHandler{donations: donations, projects: projects, pages: pages, logger: logger}
}

// donateForm is the data behind donate.html.
type donateForm struct {
	Project *model.Project
	Amount  string
	Error   string
}

// HandleFormPage renders the donation form.
//
// HTTP: GET /projects/{id}/donate
func (h *DonationHandler) HandleFormPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to load project", err)
		h.pages.renderError(w, r, err)
		return
	}
	h.pages.RenderPage(w, r, http.StatusOK, PageDonate, donateForm{Project: p})
}

// HandleFormSubmit records a donation and sends the donor to their
// certificate.
//
// HTTP: POST /projects/{id}/donate (multipart: donationAmount, screenshot)
//
// UPLOAD LIMITS:
// http.MaxBytesReader caps the whole body so an oversized upload is cut off
// while it streams in, before ParseMultipartForm spills it to disk. The
// service then checks the file's own size and type.
func (h *DonationHandler) HandleFormSubmit(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to load project", err)
		h.pages.renderError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxScreenshotBytes+multipartSlack)
	if err := r.ParseMultipartForm(service.MaxScreenshotBytes + multipartSlack); err != nil {
		h.formError(w, r, donateForm{Project: p}, uploadError(err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	in := service.DonationInput{ProjectID: p.ID, Amount: r.PostFormValue("donationAmount")}
	file, header, err := r.FormFile("screenshot")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Size stays 0; the service reports the missing screenshot.
	case err != nil:
		h.formError(w, r, donateForm{Project: p, Amount: in.Amount}, uploadError(err))
		return
	default:
		defer file.Close()
		in.Screenshot = file
		in.Size = header.Size
		in.ContentType = header.Header.Get("Content-Type")
	}

	d, err := h.donations.Donate(r.Context(), sessionFrom(r), in)
	if err != nil {
		logFailure(h.logger, "donation failed", err, slog.String("projectID", p.ID))
		h.formError(w, r, donateForm{Project: p, Amount: in.Amount}, err)
		return
	}
	http.Redirect(w, r, model.RouteCertificate+"/"+d.ID, http.StatusSeeOther)
}

// HandleCertificate streams the donation's PDF certificate.
//
// HTTP: GET /certificate/{id} (the donor or an admin)
//
// The PDF is built into a buffer first: a failure halfway through must not
// leave the browser with a truncated download.
func (h *DonationHandler) HandleCertificate(w http.ResponseWriter, r *http.Request) {
	details, err := h.donations.Certificate(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to load certificate", err)
		h.pages.renderError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := certificate.Write(&buf, details); err != nil {
		h.logger.Error("failed to generate certificate", slog.String("error", err.Error()))
		h.pages.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", details.Filename()))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// HandleScreenshot streams the proof-of-payment image.
//
// HTTP: GET /donations/{id}/screenshot (the donor or an admin)
func (h *DonationHandler) HandleScreenshot(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.donations.Screenshot(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to load screenshot", err)
		h.pages.renderError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("screenshot stream interrupted", slog.String("error", err.Error()))
	}
}

// HandleList returns every donation.
//
// HTTP: GET /api/donations (admin)
func (h *DonationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ds, err := h.donations.List(r.Context())
	if err != nil {
		logFailure(h.logger, "failed to list donations", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// HandleGet returns one donation to its donor or an admin.
//
// HTTP: GET /api/donations/{id}
func (h *DonationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.donations.Get(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		logFailure(h.logger, "failed to get donation", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DonationHandler) formError(w http.ResponseWriter, r *http.Request, form donateForm, err error) {
	status, _ := statusFor(err)
	form.Error = userMessage(err)
	h.pages.RenderPage(w, r, status, PageDonate, form)
}

// uploadError turns a multipart parsing failure into a user-facing error.
func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ValidationFailed("screenshot", "file size should be less than 5MB")
	}
	return apperror.ValidationFailed("screenshot", "the upload could not be read, please try again")
}

// sessionFrom returns the session the guard admitted, or an anonymous one.
func sessionFrom(r *http.Request) session.Session {
	if s, ok := guard.FromContext(r.Context()); ok {
		return s
	}
	return session.Session{Status: session.StatusAnonymous}
}
