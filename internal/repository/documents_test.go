package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/store"
)

func newTestDocuments(t *testing.T) (*Documents, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	d := NewDocuments(mem)
	d.now = func() time.Time { return time.Date(2024, 5, 4, 9, 30, 0, 0, time.UTC) }
	return d, mem
}

// =========================================================================
// ROLE TESTS
// =========================================================================

func TestPutRoleThenGetRole(t *testing.T) {
	d, mem := newTestDocuments(t)
	ctx := context.Background()

	rec := &model.RoleRecord{ID: "id-1", Role: model.RoleAdmin, Name: "Asha", Email: "a@x.com"}
	if err := d.PutRole(ctx, rec); err != nil {
		t.Fatalf("PutRole() error = %v", err)
	}

	got, err := d.GetRole(ctx, "id-1")
	if err != nil {
		t.Fatalf("GetRole() error = %v", err)
	}
	if got.Role != model.RoleAdmin || got.Email != "a@x.com" || got.ID != "id-1" {
		t.Errorf("GetRole() = %+v", got)
	}

	// The stored document has exactly the role record fields.
	doc, _ := mem.Get(ctx, store.CollectionUsers, "id-1")
	if _, ok := doc.Fields["id"]; ok {
		t.Error("id must not be stored inside the document")
	}
	if doc.Fields["role"] != "admin" {
		t.Errorf("stored role = %v, want admin", doc.Fields["role"])
	}
}

func TestGetRole_NotFound(t *testing.T) {
	d, _ := newTestDocuments(t)

	_, err := d.GetRole(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetRole() error = %v, want ErrNotFound", err)
	}
}

func TestCreateRoleIfAbsent_NeverOverwrites(t *testing.T) {
	d, _ := newTestDocuments(t)
	ctx := context.Background()

	if err := d.PutRole(ctx, &model.RoleRecord{ID: "id-1", Role: model.RoleAdmin}); err != nil {
		t.Fatalf("PutRole() error = %v", err)
	}

	created, err := d.CreateRoleIfAbsent(ctx, &model.RoleRecord{ID: "id-1", Role: model.RoleVolunteer})
	if err != nil {
		t.Fatalf("CreateRoleIfAbsent() error = %v", err)
	}
	if created {
		t.Error("CreateRoleIfAbsent() reported creating over an existing record")
	}

	got, _ := d.GetRole(ctx, "id-1")
	if got.Role != model.RoleAdmin {
		t.Errorf("role = %q, existing admin role was overwritten", got.Role)
	}

	created, err = d.CreateRoleIfAbsent(ctx, &model.RoleRecord{ID: "id-2", Role: model.RoleVolunteer})
	if err != nil || !created {
		t.Errorf("CreateRoleIfAbsent(new) = %v, %v; want true, nil", created, err)
	}
}

// =========================================================================
// PROJECT TESTS
// =========================================================================

func TestProjectLifecycle(t *testing.T) {
	d, _ := newTestDocuments(t)
	ctx := context.Background()

	p := &model.Project{Title: "Beach clean-up", Venue: "Juhu"}
	if err := d.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if p.ID == "" || p.Status != model.ProjectUpcoming {
		t.Fatalf("CreateProject() left ID=%q Status=%q", p.ID, p.Status)
	}

	if err := d.AddVolunteers(ctx, p.ID, 1); err != nil {
		t.Fatalf("AddVolunteers() error = %v", err)
	}
	if err := d.AddDonations(ctx, p.ID, 500); err != nil {
		t.Fatalf("AddDonations() error = %v", err)
	}

	p.Title = "Beach clean-up 2"
	p.Volunteers = 99 // must be ignored by UpdateProject
	if err := d.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	if err := d.SetProjectStatus(ctx, p.ID, model.ProjectCompleted); err != nil {
		t.Fatalf("SetProjectStatus() error = %v", err)
	}

	got, err := d.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Title != "Beach clean-up 2" || got.Volunteers != 1 || got.Donations != 500 || !got.Completed() {
		t.Errorf("GetProject() = %+v", got)
	}

	list, err := d.ListProjects(ctx)
	if err != nil || len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("ListProjects() = %+v, %v", list, err)
	}

	if err := d.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if err := d.DeleteProject(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteProject() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// VOLUNTEER AND DONATION TESTS
// =========================================================================

func TestCreateVolunteer_KeyFromProjectAndTime(t *testing.T) {
	d, _ := newTestDocuments(t)
	ctx := context.Background()

	v := &model.Volunteer{ProjectID: "proj1", Name: "Ravi"}
	if err := d.CreateVolunteer(ctx, v); err != nil {
		t.Fatalf("CreateVolunteer() error = %v", err)
	}
	want := "proj1_1714815000000"
	if v.ID != want {
		t.Errorf("ID = %q, want %q", v.ID, want)
	}

	// Same project, same millisecond: the key is taken.
	dup := &model.Volunteer{ProjectID: "proj1", Name: "Other"}
	if err := d.CreateVolunteer(ctx, dup); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate CreateVolunteer() error = %v, want ErrConflict", err)
	}

	if err := d.SetHours(ctx, v.ID, 12.5); err != nil {
		t.Fatalf("SetHours() error = %v", err)
	}
	got, err := d.GetVolunteer(ctx, v.ID)
	if err != nil || got.Hours != 12.5 || got.Name != "Ravi" {
		t.Errorf("GetVolunteer() = %+v, %v", got, err)
	}
}

func TestCreateDonation(t *testing.T) {
	d, _ := newTestDocuments(t)
	ctx := context.Background()

	don := &model.Donation{UserID: "u1", ProjectID: "p1", Amount: 250}
	if err := d.CreateDonation(ctx, don); err != nil {
		t.Fatalf("CreateDonation() error = %v", err)
	}
	if don.ID == "" || don.Date.IsZero() {
		t.Fatalf("CreateDonation() left ID=%q Date=%v", don.ID, don.Date)
	}

	got, err := d.GetDonation(ctx, don.ID)
	if err != nil || got.Amount != 250 || got.UserID != "u1" {
		t.Errorf("GetDonation() = %+v, %v", got, err)
	}

	all, err := d.ListDonations(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListDonations() = %d, %v", len(all), err)
	}
}
