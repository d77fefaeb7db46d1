// Package partners serves partner organization review endpoints.
package partners

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/api/respond"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/middleware"
	"github.com/disaster-training/training-registry/internal/services"
)

// Service is the partner approval workflow
type Service interface {
	List(ctx context.Context, p *auth.Principal, status string, page services.PageRequest) (*services.PartnerList, error)
	Get(ctx context.Context, id string) (*models.Organization, error)
	Approve(ctx context.Context, p *auth.Principal, id string) (*models.Organization, error)
	Reject(ctx context.Context, p *auth.Principal, id, reason string) (*models.Organization, error)
}

// Handlers serves /api/partners
type Handlers struct {
	partners Service
}

// NewHandlers creates partner handlers
func NewHandlers(partners Service) *Handlers {
	return &Handlers{partners: partners}
}

// RejectRequest is the body of a rejection
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// List returns organizations by status, approved by default
// GET /api/partners?status=pending&page=1&limit=50
func (h *Handlers) List(c *gin.Context) {
	page, limit := respond.PageParams(c)
	list, err := h.partners.List(c.Request.Context(), middleware.PrincipalFrom(c), c.Query("status"),
		services.PageRequest{Page: page, Limit: limit})
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one organization
// GET /api/partners/:id
func (h *Handlers) Get(c *gin.Context) {
	org, err := h.partners.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// Approve approves a pending organization and activates its account
// PATCH /api/partners/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	org, err := h.partners.Approve(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "partner.approved", "partner", org.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Partner approved successfully",
		"partner": org,
	})
}

// Reject rejects a pending organization with a reason
// PATCH /api/partners/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	org, err := h.partners.Reject(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "partner.rejected", "partner", org.ID)
	c.JSON(http.StatusOK, gin.H{
		"message": "Partner rejected",
		"partner": org,
	})
}
