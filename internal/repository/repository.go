// Package repository gives typed access to the portal's collections on top of
// a store.RecordStore. The services depend on the interfaces declared here;
// the document-backed implementations live alongside them, and the storage
// engines themselves in the sqlite and mongo subpackages.
package repository

import (
	"context"

	"github.com/sakif/ngo-hub/internal/model"
)

// RoleRepository reads and writes Role Records (users/{identityID}).
type RoleRepository interface {
	GetRole(ctx context.Context, identityID string) (*model.RoleRecord, error)
	// PutRole writes the record, replacing any existing one.
	PutRole(ctx context.Context, rec *model.RoleRecord) error
	// CreateRoleIfAbsent writes the record only when none exists and reports
	// whether it did. An existing record is never modified.
	CreateRoleIfAbsent(ctx context.Context, rec *model.RoleRecord) (bool, error)
}

// ProjectRepository manages projects and their running totals.
type ProjectRepository interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id string) error
	SetProjectStatus(ctx context.Context, id, status string) error
	AddVolunteers(ctx context.Context, id string, delta int) error
	AddDonations(ctx context.Context, id string, amount float64) error
}

// VolunteerRepository manages volunteer registrations.
type VolunteerRepository interface {
	CreateVolunteer(ctx context.Context, v *model.Volunteer) error
	GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error)
	ListVolunteers(ctx context.Context) ([]model.Volunteer, error)
	SetHours(ctx context.Context, id string, hours float64) error
}

// DonationRepository manages donation records.
type DonationRepository interface {
	CreateDonation(ctx context.Context, d *model.Donation) error
	GetDonation(ctx context.Context, id string) (*model.Donation, error)
	ListDonations(ctx context.Context) ([]model.Donation, error)
}
