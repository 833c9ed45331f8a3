package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/validate"
)

// VolunteerService registers volunteers for projects and records their hours.
type VolunteerService struct {
	volunteers repository.VolunteerRepository
	projects   repository.ProjectRepository
	validator  *validate.Validator
	logger     *slog.Logger
	now        func() time.Time
}

// NewVolunteerService creates a VolunteerService.
func NewVolunteerService(
	volunteers repository.VolunteerRepository,
	projects repository.ProjectRepository,
	validator *validate.Validator,
	logger *slog.Logger,
) *VolunteerService {
	return &VolunteerService{volunteers: volunteers, projects: projects, validator: validator, logger: logger, now: time.Now}
}

// Register validates v, stores it under "{projectID}_{unixMillis}" and bumps
// the project's volunteer count.
//
// The registration and the counter are two writes. If the counter update
// fails the registration stands and the error is logged; the count is a
// display total, the registration is the record of truth.
func (s *VolunteerService) Register(ctx context.Context, projectID string, v model.Volunteer) (*model.Volunteer, error) {
	v.ID = ""
	v.Hours = 0
	v.RegisteredAt = s.now()
	v.ProjectID = strings.TrimSpace(projectID)
	v.Name = strings.TrimSpace(v.Name)
	v.Email = strings.TrimSpace(v.Email)
	v.Phone = strings.TrimSpace(v.Phone)
	v.Pincode = strings.TrimSpace(v.Pincode)
	if err := s.validator.Struct(v); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, v.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.Completed() {
		return nil, apperror.ValidationFailed("projectId", "this project is already completed")
	}

	if err := s.volunteers.CreateVolunteer(ctx, &v); err != nil {
		return nil, fmt.Errorf("service/volunteer: registering: %w", err)
	}
	if err := s.projects.AddVolunteers(ctx, v.ProjectID, 1); err != nil {
		s.logger.Error("volunteer registered but project count not updated",
			slog.String("volunteerID", v.ID),
			slog.String("projectID", v.ProjectID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("volunteer registered",
		slog.String("volunteerID", v.ID),
		slog.String("projectID", v.ProjectID),
	)
	return &v, nil
}

// List returns every registration.
func (s *VolunteerService) List(ctx context.Context) ([]model.Volunteer, error) {
	return s.volunteers.ListVolunteers(ctx)
}

// RecordHours sets the hours a volunteer has put in. Admin only.
func (s *VolunteerService) RecordHours(ctx context.Context, id string, hours float64) (*model.Volunteer, error) {
	if hours < 0 {
		return nil, apperror.ValidationFailed("hours", "hours cannot be negative")
	}
	if err := s.volunteers.SetHours(ctx, id, hours); err != nil {
		return nil, fmt.Errorf("service/volunteer: recording hours for %s: %w", id, err)
	}
	return s.volunteers.GetVolunteer(ctx, id)
}
