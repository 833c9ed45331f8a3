package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/store"
	"github.com/sakif/ngo-hub/internal/validate"
)

func newTestProjectService(t *testing.T) (*ProjectService, *repository.Documents) {
	t.Helper()
	docs := repository.NewDocuments(store.NewMemory())
	return NewProjectService(docs, validate.New(), testLogger()), docs
}

func TestProjectCreate_TrimsAndDefaultsToUpcoming(t *testing.T) {
	svc, _ := newTestProjectService(t)

	p, err := svc.Create(context.Background(), ProjectInput{Title: "  Tree Plantation  ", Venue: "Pune"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ID == "" {
		t.Error("ID should be set")
	}
	if p.Title != "Tree Plantation" {
		t.Errorf("Title = %q, want trimmed", p.Title)
	}
	if p.Status != model.ProjectUpcoming {
		t.Errorf("Status = %q, want %q", p.Status, model.ProjectUpcoming)
	}
}

func TestProjectCreate_BlankTitle(t *testing.T) {
	svc, _ := newTestProjectService(t)

	_, err := svc.Create(context.Background(), ProjectInput{Title: "   "})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestProjectList_SplitsByStatus(t *testing.T) {
	svc, _ := newTestProjectService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, ProjectInput{Title: "A"})
	svc.Create(ctx, ProjectInput{Title: "B"})
	if _, err := svc.Complete(ctx, a.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list.Upcoming) != 1 || list.Upcoming[0].Title != "B" {
		t.Errorf("Upcoming = %+v", list.Upcoming)
	}
	if len(list.Completed) != 1 || list.Completed[0].Title != "A" {
		t.Errorf("Completed = %+v", list.Completed)
	}
}

func TestProjectUpdate_KeepsTotals(t *testing.T) {
	svc, docs := newTestProjectService(t)
	ctx := context.Background()

	p, _ := svc.Create(ctx, ProjectInput{Title: "Old"})
	docs.AddVolunteers(ctx, p.ID, 2)

	got, err := svc.Update(ctx, p.ID, ProjectInput{Title: "New", Venue: "Hall 2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "New" || got.Venue != "Hall 2" {
		t.Errorf("Update() = %+v", got)
	}
	if got.Volunteers != 2 {
		t.Errorf("Volunteers = %d, update must not reset totals", got.Volunteers)
	}
}

func TestProjectUpdate_NotFound(t *testing.T) {
	svc, _ := newTestProjectService(t)

	_, err := svc.Update(context.Background(), "missing", ProjectInput{Title: "X"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestProjectDelete(t *testing.T) {
	svc, _ := newTestProjectService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, ProjectInput{Title: "Gone"})

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestProjectGet_EmptyID(t *testing.T) {
	svc, _ := newTestProjectService(t)

	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get() error = %v, want ErrValidation", err)
	}
}
