package model

import "time"

// Donation records one proof-of-payment submission.
type Donation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	ProjectID     string    `json:"projectId"`
	ProjectName   string    `json:"projectName"`
	Amount        float64   `json:"donationAmount"`
	ScreenshotKey string    `json:"screenshotKey"`
	Date          time.Time `json:"date"`
}

// Overview aggregates project totals for the admin dashboard.
type Overview struct {
	TotalProjects     int                `json:"totalProjects"`
	UpcomingProjects  int                `json:"upcomingProjects"`
	CompletedProjects int                `json:"completedProjects"`
	TotalVolunteers   int                `json:"totalVolunteers"`
	TotalDonations    float64            `json:"totalDonations"`
	PerProject        []ProjectHeadcount `json:"perProject"`
}

// ProjectHeadcount is one point of the volunteers-per-project chart.
type ProjectHeadcount struct {
	Name       string `json:"name"`
	Volunteers int    `json:"volunteers"`
}
