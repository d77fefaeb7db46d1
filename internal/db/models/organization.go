// Package models - organization.go defines the partner Organization model, registered by
// a partner account and moved through the approval workflow by admins.
package models

import "time"

// Approval statuses shared by organizations and training events.
// pending is initial; approved and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Organization types
const (
	OrgTypeGovernment = "govt"
	OrgTypeNGO        = "ngo"
	OrgTypePrivate    = "private"
	OrgTypeTraining   = "training"
)

// Organization is a partner organization
type Organization struct {
	ID               string     `db:"id" json:"id"`
	OrganizationName string     `db:"organization_name" json:"organizationName"`
	OrganizationType string     `db:"organization_type" json:"organizationType"`
	State            string     `db:"state" json:"state"`
	District         string     `db:"district" json:"district"`
	Address          string     `db:"address" json:"address"`
	ContactPerson    string     `db:"contact_person" json:"contactPerson"`
	Email            string     `db:"email" json:"email"`
	Phone            string     `db:"phone" json:"phone"`
	Documents        Documents  `db:"documents" json:"documents"`
	Status           string     `db:"status" json:"status"`
	RejectionReason  *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	UserID           string     `db:"user_id" json:"userId"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovedBy       *string    `db:"approved_by" json:"approvedBy,omitempty"`
}

// Document is a supporting file attached to a registration
type Document struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}
