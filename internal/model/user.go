// Package model defines the data structures used throughout the portal.
package model

import "time"

// Role is the closed set of roles a Role Record may hold.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleVolunteer
}

// RoleRecord is the durable role document stored under users/{identityID}.
//
// WHY A SEPARATE RECORD (not a field on the identity)?
// The identity provider and the record store are separate systems with
// separate failure modes. An identity can exist without a RoleRecord (a role
// write failed after sign-up), and the portal must degrade gracefully when it
// does. Name and Email are denormalised copies captured at creation time.
type RoleRecord struct {
	ID        string    `json:"-"`
	Role      Role      `json:"role"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
