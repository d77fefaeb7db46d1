package auth

import "github.com/disaster-training/training-registry/internal/db/models"

// Principal is the resolved caller of an operation
type Principal struct {
	UserID         string
	Email          string
	Role           string
	OrganizationID string // empty when the identity has no organization
}

// IsAdmin reports whether p holds the admin role
func (p *Principal) IsAdmin() bool { return p != nil && p.Role == models.RoleAdmin }

// IsPartner reports whether p holds the partner role
func (p *Principal) IsPartner() bool { return p != nil && p.Role == models.RolePartner }

// Action names an operation guarded by CanAct
type Action string

const (
	ActionCreateTraining     Action = "training:create"
	ActionUpdateTraining     Action = "training:update"
	ActionDeleteTraining     Action = "training:delete"
	ActionDecideTraining     Action = "training:decide"
	ActionManageCertificates Action = "certificate:manage"
	ActionListPartners       Action = "partner:list"
	ActionDecidePartner      Action = "partner:decide"
	ActionViewDashboard      Action = "analytics:dashboard"
	ActionViewCoverage       Action = "analytics:coverage"
	ActionViewGaps           Action = "analytics:gaps"
	ActionReadAuditLogs      Action = "audit:read"
)

// CanAct decides whether principal may perform action on a resource owned by
// ownerOrganizationID (empty for actions not tied to a record).
//
// Admins may do everything except create trainings, which always belong to a
// partner organization. Partners may create trainings for their own
// organization and change or certify trainings it owns. Anonymous callers may
// do nothing here.
func CanAct(p *Principal, action Action, ownerOrganizationID string) bool {
	if p == nil || p.UserID == "" {
		return false
	}

	switch action {
	case ActionCreateTraining:
		return p.IsPartner() && p.OrganizationID != ""
	case ActionUpdateTraining, ActionDeleteTraining, ActionManageCertificates:
		if p.IsAdmin() {
			return true
		}
		return p.IsPartner() && p.OrganizationID != "" && p.OrganizationID == ownerOrganizationID
	case ActionViewCoverage:
		return p.IsAdmin() || p.IsPartner()
	case ActionDecideTraining, ActionListPartners, ActionDecidePartner,
		ActionViewDashboard, ActionViewGaps, ActionReadAuditLogs:
		return p.IsAdmin()
	}
	return false
}
