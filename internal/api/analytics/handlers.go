// Package analytics serves the dashboard, coverage and gap reports.
package analytics

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/api/respond"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/middleware"
	"github.com/disaster-training/training-registry/internal/services"
)

// Service aggregates approved trainings
type Service interface {
	Dashboard(ctx context.Context, p *auth.Principal) (*services.Dashboard, error)
	Coverage(ctx context.Context, p *auth.Principal) (*services.Coverage, error)
	Gaps(ctx context.Context, p *auth.Principal) (*services.Gaps, error)
}

// Handlers serves /api/analytics
type Handlers struct {
	analytics Service
}

func NewHandlers(analytics Service) *Handlers {
	return &Handlers{analytics: analytics}
}

// GET /api/analytics/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	d, err := h.analytics.Dashboard(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/analytics/coverage
func (h *Handlers) Coverage(c *gin.Context) {
	cov, err := h.analytics.Coverage(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, cov)
}

// GET /api/analytics/gaps
func (h *Handlers) Gaps(c *gin.Context) {
	gaps, err := h.analytics.Gaps(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gaps)
}
