package services

import (
	"context"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
)

// AuditLogStore reads recorded audit entries
type AuditLogStore interface {
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
	GetAuditLog(ctx context.Context, id string) (*models.AuditLog, error)
}

// AuditLogService lets admins review the audit trail
type AuditLogService struct {
	store AuditLogStore
}

func NewAuditLogService(store AuditLogStore) *AuditLogService {
	return &AuditLogService{store: store}
}

// AuditLogList is one page of audit entries, newest first
type AuditLogList struct {
	Logs       []*models.AuditLog `json:"logs"`
	Pagination Pagination         `json:"pagination"`
}

// List returns audit entries matching filters. Admin only.
func (s *AuditLogService) List(ctx context.Context, p *auth.Principal, filters repositories.AuditFilters, page PageRequest) (*AuditLogList, error) {
	if !auth.CanAct(p, auth.ActionReadAuditLogs, "") {
		return nil, apperr.Forbidden("Only admins can read audit logs")
	}
	if filters.StartDate != nil && filters.EndDate != nil && filters.EndDate.Before(*filters.StartDate) {
		return nil, apperr.Validation("Invalid date range", map[string]string{"to": "must not be before from"})
	}

	page = page.normalize()
	logs, total, err := s.store.ListAuditLogs(ctx, filters, page.Limit, page.offset())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuditLogList{Logs: logs, Pagination: newPagination(total, page)}, nil
}

// Get returns one audit entry. Admin only.
func (s *AuditLogService) Get(ctx context.Context, p *auth.Principal, id string) (*models.AuditLog, error) {
	if !auth.CanAct(p, auth.ActionReadAuditLogs, "") {
		return nil, apperr.Forbidden("Only admins can read audit logs")
	}
	if !validID(id) {
		return nil, apperr.NotFound("Audit log not found")
	}
	log, err := s.store.GetAuditLog(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if log == nil {
		return nil, apperr.NotFound("Audit log not found")
	}
	return log, nil
}
