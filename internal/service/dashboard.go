package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
)

// Dashboard list sizes.
const (
	recentVolunteers = 5
	topVolunteers    = 3
	recentDonations  = 5
	topDonations     = 3
)

// Dashboard is everything the admin dashboard shows.
type Dashboard struct {
	Overview         model.Overview    `json:"overview"`
	RecentVolunteers []model.Volunteer `json:"recentVolunteers"`
	TopVolunteers    []model.Volunteer `json:"topVolunteers"`
	RecentDonations  []model.Donation  `json:"recentDonations"`
	TopDonations     []model.Donation  `json:"topDonationsThisMonth"`
	DonationTotal    float64           `json:"donationTotal"`
}

// DashboardService builds the admin dashboard. Admin only.
type DashboardService struct {
	projects   repository.ProjectRepository
	volunteers repository.VolunteerRepository
	donations  repository.DonationRepository
	now        func() time.Time
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(
	projects repository.ProjectRepository,
	volunteers repository.VolunteerRepository,
	donations repository.DonationRepository,
) *DashboardService {
	return &DashboardService{projects: projects, volunteers: volunteers, donations: donations, now: time.Now}
}

// Build reads the three collections and aggregates them.
func (s *DashboardService) Build(ctx context.Context) (*Dashboard, error) {
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: %w", err)
	}
	volunteers, err := s.volunteers.ListVolunteers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: %w", err)
	}
	donations, err := s.donations.ListDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/dashboard: %w", err)
	}

	d := &Dashboard{Overview: overview(projects, len(volunteers))}
	d.RecentVolunteers = firstN(sortedCopy(volunteers, func(a, b model.Volunteer) bool {
		return a.RegisteredAt.After(b.RegisteredAt)
	}), recentVolunteers)
	d.TopVolunteers = firstN(sortedCopy(volunteers, func(a, b model.Volunteer) bool {
		return a.Hours > b.Hours
	}), topVolunteers)

	d.RecentDonations = firstN(sortedCopy(donations, func(a, b model.Donation) bool {
		return a.Date.After(b.Date)
	}), recentDonations)

	now := s.now()
	var thisMonth []model.Donation
	for _, don := range donations {
		d.DonationTotal += don.Amount
		if sameMonth(don.Date, now) {
			thisMonth = append(thisMonth, don)
		}
	}
	d.TopDonations = firstN(sortedCopy(thisMonth, func(a, b model.Donation) bool {
		return a.Amount > b.Amount
	}), topDonations)

	return d, nil
}

func overview(projects []model.Project, volunteers int) model.Overview {
	o := model.Overview{
		TotalProjects:   len(projects),
		TotalVolunteers: volunteers,
		PerProject:      make([]model.ProjectHeadcount, 0, len(projects)),
	}
	for _, p := range projects {
		if p.Completed() {
			o.CompletedProjects++
		} else {
			o.UpcomingProjects++
		}
		o.TotalDonations += p.Donations
		o.PerProject = append(o.PerProject, model.ProjectHeadcount{Name: p.Title, Volunteers: p.Volunteers})
	}
	return o
}

// sortedCopy sorts a copy of in with a stable sort, so ties keep key order.
func sortedCopy[T any](in []T, less func(a, b T) bool) []T {
	out := make([]T, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func firstN[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func sameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
