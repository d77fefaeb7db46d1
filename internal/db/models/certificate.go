package models

import "time"

// Certificate records a trainee's completion of an approved training.
// CertificateID is the public, human-readable identifier used for verification.
type Certificate struct {
	ID             string    `db:"id" json:"id"`
	CertificateID  string    `db:"certificate_id" json:"certificateId"`
	TraineeName    string    `db:"trainee_name" json:"traineeName"`
	TrainingID     string    `db:"training_id" json:"trainingId"`
	TrainingTitle  string    `db:"training_title" json:"trainingTitle"`
	IssueDate      time.Time `db:"issue_date" json:"issueDate"`
	CertificateURL *string   `db:"certificate_url" json:"certificateUrl,omitempty"`
	Verified       bool      `db:"verified" json:"verified"`
	IssuedBy       *string   `db:"issued_by" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
