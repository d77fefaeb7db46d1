// Package models - audit_log.go defines the AuditLog model recording who changed what:
// workflow decisions, training edits and uploads, with client IP and request metadata.
package models

import "time"

// AuditLog is one recorded mutation
type AuditLog struct {
	ID             string                 `json:"id"`
	UserID         *string                `json:"userId,omitempty"` // nil for anonymous actions such as registration
	OrganizationID *string                `json:"organizationId,omitempty"`
	Action         string                 `json:"action"`                 // "training.created", "partner.approved", "upload.created"
	ResourceType   *string                `json:"resourceType,omitempty"` // "training", "partner", "upload", "certificate"
	ResourceID     *string                `json:"resourceId,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"` // JSONB
	IPAddress      *string                `json:"ipAddress,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}
