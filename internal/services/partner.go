package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
	"github.com/disaster-training/training-registry/internal/telemetry"
	"github.com/disaster-training/training-registry/internal/validation"
)

// PartnerService drives the partner approval workflow: pending -> approved | rejected
type PartnerService struct {
	orgs OrganizationStore
	now  func() time.Time
}

// NewPartnerService creates a new PartnerService
func NewPartnerService(orgs OrganizationStore) *PartnerService {
	return &PartnerService{orgs: orgs, now: time.Now}
}

type partnerQuery struct {
	Status string `json:"status" binding:"oneof=pending approved rejected"`
}

type partnerRejection struct {
	Reason string `json:"reason" binding:"required"`
}

// PartnerList is one page of organizations
type PartnerList struct {
	Partners   []*models.Organization `json:"partners"`
	Pagination Pagination             `json:"pagination"`
}

// List returns organizations with the given status (approved when empty). Admin only.
func (s *PartnerService) List(ctx context.Context, p *auth.Principal, status string, page PageRequest) (*PartnerList, error) {
	if !auth.CanAct(p, auth.ActionListPartners, "") {
		return nil, apperr.Forbidden("Only admins can view all partners")
	}
	if status == "" {
		status = models.StatusApproved
	}
	if fields := validation.Struct(&partnerQuery{Status: status}); fields != nil {
		return nil, apperr.Validation("Invalid status filter", fields)
	}

	page = page.normalize()
	orgs, total, err := s.orgs.List(ctx, repositories.OrganizationFilter{Status: status}, page.Limit, page.offset())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &PartnerList{Partners: orgs, Pagination: newPagination(total, page)}, nil
}

// Get returns one organization
func (s *PartnerService) Get(ctx context.Context, id string) (*models.Organization, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Partner not found")
	}
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if org == nil {
		return nil, apperr.NotFound("Partner not found")
	}
	return org, nil
}

// Approve approves a pending organization and activates its account
func (s *PartnerService) Approve(ctx context.Context, p *auth.Principal, id string) (*models.Organization, error) {
	if !auth.CanAct(p, auth.ActionDecidePartner, "") {
		return nil, apperr.Forbidden("Only admins can approve partners")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.orgs.Approve(ctx, id, p.UserID, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.afterTransition(ctx, p, id, models.StatusApproved, ok)
}

// Reject rejects a pending organization. The account stays inactive.
func (s *PartnerService) Reject(ctx context.Context, p *auth.Principal, id, reason string) (*models.Organization, error) {
	if !auth.CanAct(p, auth.ActionDecidePartner, "") {
		return nil, apperr.Forbidden("Only admins can reject partners")
	}
	reason = strings.TrimSpace(reason)
	if fields := validation.Struct(&partnerRejection{Reason: reason}); fields != nil {
		return nil, apperr.Validation("A rejection reason is required", fields)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.orgs.Reject(ctx, id, reason)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return s.afterTransition(ctx, p, id, models.StatusRejected, ok)
}

// afterTransition reloads the organization and turns a lost compare-and-swap into Conflict
func (s *PartnerService) afterTransition(ctx context.Context, p *auth.Principal, id, target string, ok bool) (*models.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("Organization is already " + org.Status)
	}

	telemetry.WorkflowTransitionsTotal.WithLabelValues("partner", target).Inc()
	slog.Info("partner "+target, "org_id", id, "admin_id", p.UserID)
	return org, nil
}
