// audit.go provides Gin middleware that records authenticated write operations to the audit
// log, with optional shipping to external audit destinations.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/audit"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/config"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/safego"
)

// Gin context keys handlers use to describe the audited action
const (
	contextKeyAuditAction       = "audit_action"
	contextKeyAuditResourceType = "audit_resource_type"
	contextKeyAuditResourceID   = "audit_resource_id"
)

// AuditRecorder persists audit entries
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditAction names the domain action a handler performed, e.g.
// "training.created". Requests without one are recorded by method and route.
func SetAuditAction(c *gin.Context, action, resourceType, resourceID string) {
	c.Set(contextKeyAuditAction, action)
	c.Set(contextKeyAuditResourceType, resourceType)
	if resourceID != "" {
		c.Set(contextKeyAuditResourceID, resourceID)
	}
}

// AuditMiddleware records authenticated mutating requests, and anonymous ones
// whose handler called SetAuditAction. Writes to the recorder and the shipper
// happen off the request goroutine.
func AuditMiddleware(recorder AuditRecorder, shipper audit.Shipper, cfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Enabled {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		status := c.Writer.Status()
		if status >= 400 && !cfg.LogFailedRequests {
			return
		}

		action := c.GetString(contextKeyAuditAction)
		p := PrincipalFrom(c)
		if p == nil {
			if action == "" {
				return
			}
			p = &auth.Principal{}
		}
		if action == "" {
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			action = c.Request.Method + " " + route
		}
		resourceType := c.GetString(contextKeyAuditResourceType)
		resourceID := c.GetString(contextKeyAuditResourceID)
		if resourceID == "" {
			resourceID = c.Param("id")
		}
		requestID := c.GetString(RequestIDKey)
		ipAddress := c.ClientIP()

		metadata := map[string]interface{}{"status_code": status}
		if p.Role != "" {
			metadata["role"] = p.Role
		}
		if requestID != "" {
			metadata["request_id"] = requestID
		}

		entry := &models.AuditLog{
			Action:    action,
			Metadata:  metadata,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}
		if p.UserID != "" {
			entry.UserID = &p.UserID
		}
		if p.OrganizationID != "" {
			entry.OrganizationID = &p.OrganizationID
		}
		if resourceType != "" {
			entry.ResourceType = &resourceType
		}
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}

		shipped := &audit.LogEntry{
			Timestamp:      entry.CreatedAt,
			Action:         action,
			UserID:         p.UserID,
			Role:           p.Role,
			OrganizationID: p.OrganizationID,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			IPAddress:      ipAddress,
			RequestID:      requestID,
			StatusCode:     status,
		}

		safego.Go("audit-record", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if recorder != nil {
				if err := recorder.CreateAuditLog(ctx, entry); err != nil {
					slog.Error("failed to create audit log", "action", action, "request_id", requestID, "error", err)
				}
			}
			if shipper != nil {
				if err := shipper.Ship(ctx, shipped); err != nil {
					slog.Warn("failed to ship audit log", "action", action, "request_id", requestID, "error", err)
				}
			}
		})
	}
}
