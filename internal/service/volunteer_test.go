package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/store"
	"github.com/sakif/ngo-hub/internal/validate"
)

func validVolunteer() model.Volunteer {
	return model.Volunteer{
		Name:        "Meera Nair",
		Age:         24,
		Email:       "meera@example.org",
		Phone:       "9876543210",
		Description: "Weekends free",
		Location:    "Kochi",
		Pincode:     "682001",
	}
}

func newTestVolunteerService(t *testing.T) (*VolunteerService, *repository.Documents, string) {
	t.Helper()
	docs := repository.NewDocuments(store.NewMemory())
	p := &model.Project{Title: "Beach Cleanup"}
	if err := docs.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	svc := NewVolunteerService(docs, docs, validate.New(), testLogger())
	svc.now = func() time.Time { return time.Date(2024, 5, 4, 9, 30, 0, 0, time.UTC) }
	return svc, docs, p.ID
}

func TestVolunteerRegister(t *testing.T) {
	svc, docs, projectID := newTestVolunteerService(t)
	ctx := context.Background()

	in := validVolunteer()
	in.Hours = 99 // ignored: hours are recorded by an admin
	v, err := svc.Register(ctx, projectID, in)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if want := projectID + "_1714815000000"; v.ID != want {
		t.Errorf("ID = %q, want %q", v.ID, want)
	}
	if v.Hours != 0 {
		t.Errorf("Hours = %v, want 0", v.Hours)
	}

	p, _ := docs.GetProject(ctx, projectID)
	if p.Volunteers != 1 {
		t.Errorf("project volunteers = %d, want 1", p.Volunteers)
	}
}

func TestVolunteerRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*model.Volunteer)
		field string
	}{
		{"blank name", func(v *model.Volunteer) { v.Name = " " }, "name"},
		{"negative age", func(v *model.Volunteer) { v.Age = -1 }, "age"},
		{"bad email", func(v *model.Volunteer) { v.Email = "meera" }, "email"},
		{"short phone", func(v *model.Volunteer) { v.Phone = "12345" }, "phone"},
		{"short pincode", func(v *model.Volunteer) { v.Pincode = "123" }, "pincode"},
		{"blank location", func(v *model.Volunteer) { v.Location = "" }, "location"},
		{"blank description", func(v *model.Volunteer) { v.Description = "" }, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, docs, projectID := newTestVolunteerService(t)
			in := validVolunteer()
			tt.edit(&in)

			_, err := svc.Register(context.Background(), projectID, in)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
			if vs, _ := docs.ListVolunteers(context.Background()); len(vs) != 0 {
				t.Error("nothing may be stored on invalid input")
			}
		})
	}
}

func TestVolunteerRegister_UnknownProject(t *testing.T) {
	svc, _, _ := newTestVolunteerService(t)

	_, err := svc.Register(context.Background(), "nope", validVolunteer())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Register() error = %v, want ErrNotFound", err)
	}
}

func TestVolunteerRegister_SameMillisecondConflicts(t *testing.T) {
	svc, _, projectID := newTestVolunteerService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, projectID, validVolunteer()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(ctx, projectID, validVolunteer())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestVolunteerRecordHours(t *testing.T) {
	svc, _, projectID := newTestVolunteerService(t)
	ctx := context.Background()
	v, _ := svc.Register(ctx, projectID, validVolunteer())

	got, err := svc.RecordHours(ctx, v.ID, 12.5)
	if err != nil {
		t.Fatalf("RecordHours() error = %v", err)
	}
	if got.Hours != 12.5 {
		t.Errorf("Hours = %v, want 12.5", got.Hours)
	}

	if _, err := svc.RecordHours(ctx, v.ID, -1); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("negative hours error = %v, want ErrValidation", err)
	}
}
