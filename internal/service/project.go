package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/validate"
)

// ProjectService handles the projects page and the admin's project
// management. Permission checks happen in the route guard; by the time a
// write reaches this service the caller is an admin.
type ProjectService struct {
	repo      repository.ProjectRepository
	validator *validate.Validator
	logger    *slog.Logger
}

// NewProjectService creates a ProjectService.
func NewProjectService(repo repository.ProjectRepository, validator *validate.Validator, logger *slog.Logger) *ProjectService {
	return &ProjectService{repo: repo, validator: validator, logger: logger}
}

// ProjectInput is the editable part of a project.
type ProjectInput struct {
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Coordinator string `json:"coordinator"`
	Details     string `json:"details"`
}

func (in ProjectInput) project() *model.Project {
	return &model.Project{
		Title:       strings.TrimSpace(in.Title),
		Venue:       strings.TrimSpace(in.Venue),
		Date:        strings.TrimSpace(in.Date),
		Coordinator: strings.TrimSpace(in.Coordinator),
		Details:     strings.TrimSpace(in.Details),
	}
}

// List returns all projects split into upcoming and completed, newest first.
func (s *ProjectService) List(ctx context.Context) (*model.ProjectList, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/project: listing: %w", err)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})

	list := &model.ProjectList{Upcoming: []model.Project{}, Completed: []model.Project{}}
	for _, p := range projects {
		if p.Completed() {
			list.Completed = append(list.Completed, p)
		} else {
			list.Upcoming = append(list.Upcoming, p)
		}
	}
	return list, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}
	return s.repo.GetProject(ctx, id)
}

// Create validates in and stores a new upcoming project.
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*model.Project, error) {
	p := in.project()
	if err := s.validator.Struct(p); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("service/project: creating: %w", err)
	}
	s.logger.Info("project created", slog.String("projectID", p.ID), slog.String("title", p.Title))
	return p, nil
}

// Update replaces the editable fields and returns the stored project.
func (s *ProjectService) Update(ctx context.Context, id string, in ProjectInput) (*model.Project, error) {
	p := in.project()
	p.ID = id
	if err := s.validator.Struct(p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("service/project: updating %s: %w", id, err)
	}
	return s.repo.GetProject(ctx, id)
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("service/project: deleting %s: %w", id, err)
	}
	s.logger.Info("project deleted", slog.String("projectID", id))
	return nil
}

// Complete marks the project completed. Completing twice is a no-op.
func (s *ProjectService) Complete(ctx context.Context, id string) (*model.Project, error) {
	if err := s.repo.SetProjectStatus(ctx, id, model.ProjectCompleted); err != nil {
		return nil, fmt.Errorf("service/project: completing %s: %w", id, err)
	}
	return s.repo.GetProject(ctx, id)
}
