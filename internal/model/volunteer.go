package model

import "time"

// Volunteer is a registration for a single project.
type Volunteer struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	Name         string    `json:"name"        validate:"notblank"`
	Age          int       `json:"age"         validate:"gte=0,lte=150"`
	Email        string    `json:"email"       validate:"required,email"`
	Phone        string    `json:"phone"       validate:"required,min=10,max=20"`
	Description  string    `json:"description" validate:"notblank"`
	Location     string    `json:"location"    validate:"notblank"`
	Pincode      string    `json:"pincode"     validate:"required,min=6,max=10"`
	Hours        float64   `json:"hours"`
	RegisteredAt time.Time `json:"registeredAt"`
}
