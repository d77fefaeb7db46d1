// Package admin serves administrator-only review endpoints.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/disaster-training/training-registry/internal/api/respond"
	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
	"github.com/disaster-training/training-registry/internal/middleware"
	"github.com/disaster-training/training-registry/internal/services"
)

// AuditLogService reads the audit trail
type AuditLogService interface {
	List(ctx context.Context, p *auth.Principal, filters repositories.AuditFilters, page services.PageRequest) (*services.AuditLogList, error)
	Get(ctx context.Context, p *auth.Principal, id string) (*models.AuditLog, error)
}

// AuditLogHandlers serves /api/admin/audit-logs
type AuditLogHandlers struct {
	logs AuditLogService
}

func NewAuditLogHandlers(logs AuditLogService) *AuditLogHandlers {
	return &AuditLogHandlers{logs: logs}
}

// List returns audit entries, newest first
// GET /api/admin/audit-logs?userId=&organizationId=&action=&resourceType=&resourceId=&from=&to=&page=&limit=
func (h *AuditLogHandlers) List(c *gin.Context) {
	filters := repositories.AuditFilters{
		Action:       optional(c, "action"),
		ResourceType: optional(c, "resourceType"),
		ResourceID:   optional(c, "resourceId"),
	}
	var ok bool
	if filters.UserID, ok = optionalUUID(c, "userId"); !ok {
		return
	}
	if filters.OrganizationID, ok = optionalUUID(c, "organizationId"); !ok {
		return
	}
	if filters.StartDate, ok = optionalTime(c, "from"); !ok {
		return
	}
	if filters.EndDate, ok = optionalTime(c, "to"); !ok {
		return
	}

	page, limit := respond.PageParams(c)
	list, err := h.logs.List(c.Request.Context(), middleware.PrincipalFrom(c), filters,
		services.PageRequest{Page: page, Limit: limit})
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one audit entry
// GET /api/admin/audit-logs/:id
func (h *AuditLogHandlers) Get(c *gin.Context) {
	log, err := h.logs.Get(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func optional(c *gin.Context, name string) *string {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	return &v
}

// optionalUUID reads an id filter; user and organization ids are UUID columns,
// so a malformed value writes the 400 and reports false
func optionalUUID(c *gin.Context, name string) (*string, bool) {
	v := optional(c, name)
	if v == nil {
		return nil, true
	}
	if _, err := uuid.Parse(*v); err != nil {
		respond.Error(c, apperr.Validation("Invalid "+name, map[string]string{name: "must be a UUID"}))
		return nil, false
	}
	return v, true
}

// optionalTime parses an RFC 3339 query value; on a malformed value it writes
// the 400 and reports false
func optionalTime(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		respond.BadRequest(c, "Invalid "+name+" date, expected RFC 3339")
		return nil, false
	}
	return &t, true
}
