// Package models - training.go defines the TrainingEvent model submitted by partner
// organizations, with its flattened location, participant breakdown and media references.
package models

import "time"

// TrainingEvent is a training submitted by a partner organization.
// Location and ParticipantBreakdown map to prefixed columns via query aliases
// ("location.state", "breakdown.ngo").
type TrainingEvent struct {
	ID                   string               `db:"id" json:"id"`
	Title                string               `db:"title" json:"title" binding:"required"`
	Theme                string               `db:"theme" json:"theme" binding:"required"`
	Description          string               `db:"description" json:"description"`
	StartDate            time.Time            `db:"start_date" json:"startDate"`
	EndDate              time.Time            `db:"end_date" json:"endDate"`
	Location             Location             `db:"location" json:"location"`
	TrainerName          string               `db:"trainer_name" json:"trainerName"`
	TrainerEmail         string               `db:"trainer_email" json:"trainerEmail" binding:"omitempty,email"`
	ParticipantsCount    int                  `db:"participants_count" json:"participantsCount"`
	ParticipantBreakdown ParticipantBreakdown `db:"breakdown" json:"participantBreakdown"`
	Photos               MediaFiles           `db:"photos" json:"photos"`
	AttendanceSheet      *MediaFile           `db:"attendance_sheet" json:"attendanceSheet,omitempty"`
	Status               string               `db:"status" json:"status"`
	RejectionReason      *string              `db:"rejection_reason" json:"rejectionReason,omitempty"`
	PartnerID            string               `db:"partner_id" json:"partnerId"`
	CreatedBy            *string              `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt            time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time            `db:"updated_at" json:"updatedAt"`
	ApprovedAt           *time.Time           `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovedBy           *string              `db:"approved_by" json:"approvedBy,omitempty"`
}

// Location is where a training took place
type Location struct {
	State     string   `db:"state" json:"state"`
	District  string   `db:"district" json:"district"`
	City      string   `db:"city" json:"city"`
	Pincode   string   `db:"pincode" json:"pincode"`
	Latitude  *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `db:"longitude" json:"longitude,omitempty"`
	Address   string   `db:"address" json:"address"`
}

// ParticipantBreakdown splits attendance by participant category
type ParticipantBreakdown struct {
	Government int `db:"government" json:"government"`
	NGO        int `db:"ngo" json:"ngo"`
	Volunteers int `db:"volunteers" json:"volunteers"`
}

// PartnerSummary is the organization detail joined onto training reads
type PartnerSummary struct {
	OrganizationName string `db:"organization_name" json:"organizationName"`
	ContactPerson    string `db:"contact_person" json:"contactPerson,omitempty"`
	Phone            string `db:"phone" json:"phone,omitempty"`
}

// TrainingWithPartner is a training plus its owning organization's summary
type TrainingWithPartner struct {
	TrainingEvent
	Partner PartnerSummary `db:"partner" json:"partner"`
}

// IsOwnedBy reports whether the training belongs to organizationID
func (t *TrainingEvent) IsOwnedBy(organizationID *string) bool {
	return organizationID != nil && *organizationID != "" && *organizationID == t.PartnerID
}
