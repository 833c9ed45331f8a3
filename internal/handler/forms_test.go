package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ngo-hub/internal/blob"
	"github.com/sakif/ngo-hub/internal/handler"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/service"
	"github.com/sakif/ngo-hub/internal/session"
	"github.com/sakif/ngo-hub/internal/store"
	"github.com/sakif/ngo-hub/internal/validate"
)

// portal holds the services the form handlers share.
type portal struct {
	docs       *repository.Documents
	projects   *service.ProjectService
	volunteers *service.VolunteerService
	donations  *service.DonationService
}

func newPortal(t *testing.T) *portal {
	t.Helper()
	docs := repository.NewDocuments(store.NewMemory())
	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	v := validate.New()
	return &portal{
		docs:       docs,
		projects:   service.NewProjectService(docs, v, testLogger()),
		volunteers: service.NewVolunteerService(docs, docs, v, testLogger()),
		donations:  service.NewDonationService(docs, docs, blobs, "NGO Hub", testLogger()),
	}
}

func (p *portal) project(t *testing.T, title string) *model.Project {
	t.Helper()
	proj, err := p.projects.Create(context.Background(), service.ProjectInput{Title: title})
	require.NoError(t, err)
	return proj
}

func postForm(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func volunteerForm() url.Values {
	return url.Values{
		"name":        {"Asha"},
		"age":         {"24"},
		"email":       {"asha@example.com"},
		"phone":       {"9876543210"},
		"description": {"I teach maths on weekends"},
		"location":    {"Pune"},
		"pincode":     {"411001"},
	}
}

func TestVolunteerHandler_Form(t *testing.T) {
	p := newPortal(t)
	open := p.project(t, "Reading Camp")
	h := handler.NewVolunteerHandler(p.volunteers, p.projects, newPages(t, session.Session{Status: session.StatusAnonymous}), testLogger())

	r := chi.NewRouter()
	r.Use(inInstance)
	r.Get("/projects/{id}/volunteer", h.HandleFormPage)
	r.Post("/projects/{id}/volunteer", h.HandleFormSubmit)

	t.Run("form page", func(t *testing.T) {
		rr := serve(r, http.MethodGet, "/projects/"+open.ID+"/volunteer", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Volunteer for Reading Camp")
	})

	t.Run("unknown project", func(t *testing.T) {
		rr := serve(r, http.MethodGet, "/projects/nope/volunteer", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("age must be a number and input is kept", func(t *testing.T) {
		form := volunteerForm()
		form.Set("age", "twenty")
		rr := postForm(r, "/projects/"+open.ID+"/volunteer", form)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "please enter your age as a number")
		assert.Contains(t, rr.Body.String(), `value="asha@example.com"`)
	})

	t.Run("short pincode", func(t *testing.T) {
		form := volunteerForm()
		form.Set("pincode", "411")
		rr := postForm(r, "/projects/"+open.ID+"/volunteer", form)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("registers and counts", func(t *testing.T) {
		rr := postForm(r, "/projects/"+open.ID+"/volunteer", volunteerForm())

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Thank you for registering, Asha")

		got, err := p.docs.GetProject(context.Background(), open.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Volunteers)
	})

	t.Run("completed project refuses registrations", func(t *testing.T) {
		done := p.project(t, "Old Drive")
		_, err := p.projects.Complete(context.Background(), done.ID)
		require.NoError(t, err)

		rr := postForm(r, "/projects/"+done.ID+"/volunteer", volunteerForm())
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "this project is already completed")
	})
}

func TestVolunteerHandler_API(t *testing.T) {
	p := newPortal(t)
	proj := p.project(t, "Blood Drive")
	h := handler.NewVolunteerHandler(p.volunteers, p.projects, newPages(t, adminSession), testLogger())

	r := chi.NewRouter()
	r.Post("/api/projects/{id}/volunteers", h.HandleRegister)
	r.Get("/api/volunteers", h.HandleList)
	r.Put("/api/volunteers/{id}/hours", h.HandleRecordHours)

	rr := serve(r, http.MethodPost, "/api/projects/"+proj.ID+"/volunteers", strings.NewReader(
		`{"name":"Asha","age":24,"email":"asha@example.com","phone":"9876543210","description":"help","location":"Pune","pincode":"411001"}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"projectId":"`+proj.ID+`"`)

	vs, err := p.volunteers.List(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 1)

	rr = serve(r, http.MethodPut, "/api/volunteers/"+vs[0].ID+"/hours", strings.NewReader(`{"hours":6.5}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hours":6.5`)

	rr = serve(r, http.MethodPut, "/api/volunteers/"+vs[0].ID+"/hours", strings.NewReader(`{"hours":-1}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "hours", decodeError(t, rr).Field)

	rr = serve(r, http.MethodGet, "/api/volunteers", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// donationRequest builds the multipart body the donate form posts.
func donationRequest(t *testing.T, target, amount string, file []byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("donationAmount", amount))
	if file != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="screenshot"; filename="payment.png"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func donationRouter(t *testing.T, p *portal, s session.Session) http.Handler {
	t.Helper()
	h := handler.NewDonationHandler(p.donations, p.projects, newPages(t, s), testLogger())
	r := chi.NewRouter()
	r.Use(as(s))
	r.Get("/projects/{id}/donate", h.HandleFormPage)
	r.Post("/projects/{id}/donate", h.HandleFormSubmit)
	r.Get("/certificate/{id}", h.HandleCertificate)
	r.Get("/donations/{id}/screenshot", h.HandleScreenshot)
	r.Get("/api/donations", h.HandleList)
	r.Get("/api/donations/{id}", h.HandleGet)
	return r
}

func TestDonationHandler_Flow(t *testing.T) {
	p := newPortal(t)
	proj := p.project(t, "School Kits")
	donor := donationRouter(t, p, donorSession)

	rr := httptest.NewRecorder()
	donor.ServeHTTP(rr, donationRequest(t, "/projects/"+proj.ID+"/donate", "500", png, "image/png"))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	location := rr.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/certificate/"), location)
	donationID := strings.TrimPrefix(location, "/certificate/")

	t.Run("donor downloads the certificate", func(t *testing.T) {
		rr := serve(donor, http.MethodGet, location, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("admin sees the screenshot", func(t *testing.T) {
		rr := serve(donationRouter(t, p, adminSession), http.MethodGet, "/donations/"+donationID+"/screenshot", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, png, rr.Body.Bytes())
	})

	t.Run("someone else is refused", func(t *testing.T) {
		stranger := donationRouter(t, p, strangerSession)
		assert.Equal(t, http.StatusForbidden, serve(stranger, http.MethodGet, location, nil).Code)
		assert.Equal(t, http.StatusForbidden, serve(stranger, http.MethodGet, "/api/donations/"+donationID, nil).Code)
	})

	t.Run("project total includes the donation", func(t *testing.T) {
		got, err := p.docs.GetProject(context.Background(), proj.ID)
		require.NoError(t, err)
		assert.Equal(t, 500.0, got.Donations)
	})
}

func TestDonationHandler_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		file        []byte
		contentType string
		wantText    string
	}{
		{"zero amount", "0", png, "image/png", "please enter a valid donation amount"},
		{"text amount", "many", png, "image/png", "please enter a valid donation amount"},
		{"no screenshot", "100", nil, "", "please upload the payment screenshot"},
		{"not an image", "100", []byte("%PDF-1.4"), "application/pdf", "please upload a valid image file"},
		{"oversized body", "100", bytes.Repeat([]byte{0}, service.MaxScreenshotBytes+2<<20), "image/png", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPortal(t)
			proj := p.project(t, "School Kits")
			r := donationRouter(t, p, donorSession)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, donationRequest(t, "/projects/"+proj.ID+"/donate", tt.amount, tt.file, tt.contentType))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			if tt.wantText != "" {
				assert.Contains(t, rr.Body.String(), tt.wantText)
			}
			ds, err := p.donations.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ds)
		})
	}
}

func TestAdminHandler(t *testing.T) {
	p := newPortal(t)
	h := handler.NewAdminHandler(p.projects, p.volunteers, newPages(t, adminSession), testLogger())

	r := chi.NewRouter()
	r.Use(as(adminSession))
	r.Get("/admin", h.HandlePage)
	r.Post("/admin/projects", h.HandleCreateProject)
	r.Post("/admin/projects/{id}/complete", h.HandleCompleteProject)
	r.Post("/admin/projects/{id}/delete", h.HandleDeleteProject)
	r.Post("/admin/volunteers/{id}/hours", h.HandleRecordHours)

	t.Run("create redirects back to the page", func(t *testing.T) {
		rr := postForm(r, "/admin/projects", url.Values{"title": {"Food Bank"}, "venue": {"Hall 2"}})
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, model.RouteAdmin, rr.Header().Get("Location"))

		rr = serve(r, http.MethodGet, "/admin", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Food Bank")
	})

	t.Run("blank title keeps the form filled in", func(t *testing.T) {
		rr := postForm(r, "/admin/projects", url.Values{"title": {" "}, "venue": {"Hall 3"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `value="Hall 3"`)
		assert.Contains(t, rr.Body.String(), `class="flash error"`)
	})

	t.Run("complete and delete", func(t *testing.T) {
		proj := p.project(t, "Winter Clothes")

		rr := postForm(r, "/admin/projects/"+proj.ID+"/complete", nil)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		got, err := p.docs.GetProject(context.Background(), proj.ID)
		require.NoError(t, err)
		assert.True(t, got.Completed())

		rr = postForm(r, "/admin/projects/"+proj.ID+"/delete", nil)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		_, err = p.docs.GetProject(context.Background(), proj.ID)
		assert.Error(t, err)
	})

	t.Run("hours must be a number", func(t *testing.T) {
		rr := postForm(r, "/admin/volunteers/v1/hours", url.Values{"hours": {"lots"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
