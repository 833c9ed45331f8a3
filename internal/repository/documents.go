package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/store"
)

// compile-time checks that *Documents implements every repository interface
var (
	_ RoleRepository      = (*Documents)(nil)
	_ ProjectRepository   = (*Documents)(nil)
	_ VolunteerRepository = (*Documents)(nil)
	_ DonationRepository  = (*Documents)(nil)
)

// Documents implements the repositories over any store.RecordStore.
//
// Document keys double as record IDs: the "id" field is never stored, it is
// filled from the key on the way out.
type Documents struct {
	store store.RecordStore
	now   func() time.Time
}

// NewDocuments wraps s.
func NewDocuments(s store.RecordStore) *Documents {
	return &Documents{store: s, now: time.Now}
}

// =========================================================================
// ROLES
// =========================================================================

func (d *Documents) GetRole(ctx context.Context, identityID string) (*model.RoleRecord, error) {
	var rec model.RoleRecord
	if err := d.get(ctx, store.CollectionUsers, identityID, &rec); err != nil {
		return nil, err
	}
	rec.ID = identityID
	return &rec, nil
}

func (d *Documents) PutRole(ctx context.Context, rec *model.RoleRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = d.now()
	}
	fields, err := encode(rec)
	if err != nil {
		return err
	}
	if err := d.store.Set(ctx, store.CollectionUsers, rec.ID, fields); err != nil {
		return fmt.Errorf("repository: writing role for %s: %w", rec.ID, err)
	}
	return nil
}

func (d *Documents) CreateRoleIfAbsent(ctx context.Context, rec *model.RoleRecord) (bool, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = d.now()
	}
	fields, err := encode(rec)
	if err != nil {
		return false, err
	}
	err = d.store.Create(ctx, store.CollectionUsers, rec.ID, fields)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrConflict):
		return false, nil
	default:
		return false, fmt.Errorf("repository: creating role for %s: %w", rec.ID, err)
	}
}

// =========================================================================
// PROJECTS
// =========================================================================

func (d *Documents) ListProjects(ctx context.Context) ([]model.Project, error) {
	return list[model.Project](ctx, d.store, store.CollectionProjects, func(p *model.Project, key string) { p.ID = key })
}

func (d *Documents) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := d.get(ctx, store.CollectionProjects, id, &p); err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// CreateProject stores p under a generated key and sets p.ID.
func (d *Documents) CreateProject(ctx context.Context, p *model.Project) error {
	p.CreatedAt = d.now()
	if p.Status == "" {
		p.Status = model.ProjectUpcoming
	}
	fields, err := encode(p)
	if err != nil {
		return err
	}
	key, err := d.store.Add(ctx, store.CollectionProjects, fields)
	if err != nil {
		return fmt.Errorf("repository: creating project: %w", err)
	}
	p.ID = key
	return nil
}

// UpdateProject merges the editable fields of p. Status and the running
// totals are left alone; they have their own operations.
func (d *Documents) UpdateProject(ctx context.Context, p *model.Project) error {
	err := d.store.Update(ctx, store.CollectionProjects, p.ID, store.Fields{
		"title":       p.Title,
		"venue":       p.Venue,
		"date":        p.Date,
		"coordinator": p.Coordinator,
		"details":     p.Details,
	})
	if err != nil {
		return fmt.Errorf("repository: updating project %s: %w", p.ID, err)
	}
	return nil
}

func (d *Documents) DeleteProject(ctx context.Context, id string) error {
	if _, err := d.GetProject(ctx, id); err != nil {
		return err
	}
	if err := d.store.Delete(ctx, store.CollectionProjects, id); err != nil {
		return fmt.Errorf("repository: deleting project %s: %w", id, err)
	}
	return nil
}

func (d *Documents) SetProjectStatus(ctx context.Context, id, status string) error {
	if err := d.store.Update(ctx, store.CollectionProjects, id, store.Fields{"status": status}); err != nil {
		return fmt.Errorf("repository: setting status of project %s: %w", id, err)
	}
	return nil
}

func (d *Documents) AddVolunteers(ctx context.Context, id string, delta int) error {
	if err := d.store.Increment(ctx, store.CollectionProjects, id, "volunteers", float64(delta)); err != nil {
		return fmt.Errorf("repository: counting volunteers of project %s: %w", id, err)
	}
	return nil
}

func (d *Documents) AddDonations(ctx context.Context, id string, amount float64) error {
	if err := d.store.Increment(ctx, store.CollectionProjects, id, "donations", amount); err != nil {
		return fmt.Errorf("repository: totalling donations of project %s: %w", id, err)
	}
	return nil
}

// =========================================================================
// VOLUNTEERS
// =========================================================================

// CreateVolunteer stores v under v.ID, or under "{projectID}_{unixMillis}"
// when v.ID is empty. An existing registration with the same key is a conflict.
func (d *Documents) CreateVolunteer(ctx context.Context, v *model.Volunteer) error {
	if v.RegisteredAt.IsZero() {
		v.RegisteredAt = d.now()
	}
	if v.ID == "" {
		v.ID = fmt.Sprintf("%s_%d", v.ProjectID, v.RegisteredAt.UnixMilli())
	}
	fields, err := encode(v)
	if err != nil {
		return err
	}
	if err := d.store.Create(ctx, store.CollectionVolunteers, v.ID, fields); err != nil {
		return fmt.Errorf("repository: registering volunteer %s: %w", v.ID, err)
	}
	return nil
}

func (d *Documents) GetVolunteer(ctx context.Context, id string) (*model.Volunteer, error) {
	var v model.Volunteer
	if err := d.get(ctx, store.CollectionVolunteers, id, &v); err != nil {
		return nil, err
	}
	v.ID = id
	return &v, nil
}

func (d *Documents) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	return list[model.Volunteer](ctx, d.store, store.CollectionVolunteers, func(v *model.Volunteer, key string) { v.ID = key })
}

func (d *Documents) SetHours(ctx context.Context, id string, hours float64) error {
	if err := d.store.Update(ctx, store.CollectionVolunteers, id, store.Fields{"hours": hours}); err != nil {
		return fmt.Errorf("repository: recording hours for %s: %w", id, err)
	}
	return nil
}

// =========================================================================
// DONATIONS
// =========================================================================

func (d *Documents) CreateDonation(ctx context.Context, don *model.Donation) error {
	if don.Date.IsZero() {
		don.Date = d.now()
	}
	fields, err := encode(don)
	if err != nil {
		return err
	}
	key, err := d.store.Add(ctx, store.CollectionDonations, fields)
	if err != nil {
		return fmt.Errorf("repository: recording donation: %w", err)
	}
	don.ID = key
	return nil
}

func (d *Documents) GetDonation(ctx context.Context, id string) (*model.Donation, error) {
	var don model.Donation
	if err := d.get(ctx, store.CollectionDonations, id, &don); err != nil {
		return nil, err
	}
	don.ID = id
	return &don, nil
}

func (d *Documents) ListDonations(ctx context.Context) ([]model.Donation, error) {
	return list[model.Donation](ctx, d.store, store.CollectionDonations, func(don *model.Donation, key string) { don.ID = key })
}

// =========================================================================
// HELPERS
// =========================================================================

// get loads collection/key into v. Missing documents keep their
// apperror.ErrNotFound classification.
func (d *Documents) get(ctx context.Context, collection, key string, v any) error {
	doc, err := d.store.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("repository: reading %s/%s: %w", collection, key, err)
	}
	return store.Decode(doc, v)
}

func list[T any](ctx context.Context, s store.RecordStore, collection string, setID func(*T, string)) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("repository: listing %s: %w", collection, err)
	}
	out := make([]T, 0, len(docs))
	for i := range docs {
		var v T
		if err := store.Decode(&docs[i], &v); err != nil {
			return nil, err
		}
		setID(&v, docs[i].Key)
		out = append(out, v)
	}
	return out, nil
}

// encode converts v to fields without the "id" key.
func encode(v any) (store.Fields, error) {
	fields, err := store.Encode(v)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}
