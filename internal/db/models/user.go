// Package models - user.go defines the User model: a registry account (partner or
// admin) with its hashed password, role, linked organization and account status.
package models

import "time"

// Roles an account can hold
const (
	RolePartner = "partner"
	RoleAdmin   = "admin"
)

// Account statuses. Only active accounts may log in.
const (
	AccountActive    = "active"
	AccountInactive  = "inactive"
	AccountSuspended = "suspended"
)

// User represents an account in the credential store
type User struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	Role           string    `db:"role" json:"role"`
	OrganizationID *string   `db:"organization_id" json:"organizationId"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the account may authenticate
func (u *User) IsActive() bool {
	return u.Status == AccountActive
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	return role == RolePartner || role == RoleAdmin
}
