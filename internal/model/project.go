package model

import "time"

// ProjectStatus values. Anything other than completed counts as upcoming.
const (
	ProjectUpcoming  = "upcoming"
	ProjectCompleted = "completed"
)

// Project is an NGO activity volunteers sign up for and donors fund.
// Volunteers and Donations are running totals maintained by the services.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"       validate:"notblank,max=200"`
	Venue       string    `json:"venue"       validate:"max=200"`
	Date        string    `json:"date"        validate:"max=40"`
	Coordinator string    `json:"coordinator" validate:"max=120"`
	Details     string    `json:"details"     validate:"max=5000"`
	Status      string    `json:"status"`
	Volunteers  int       `json:"volunteers"`
	Donations   float64   `json:"donations"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Completed reports whether the project has been marked completed.
func (p Project) Completed() bool {
	return p.Status == ProjectCompleted
}

// ProjectList splits projects the way the projects page shows them.
type ProjectList struct {
	Upcoming  []Project `json:"upcoming"`
	Completed []Project `json:"completed"`
}
