// Package services implements the registry's workflows on top of the repositories:
// account registration and sessions, the partner and training approval state
// machines, analytics, certificates and the upload proxy.
//
// Every operation takes the calling *auth.Principal (nil when anonymous), consults
// auth.CanAct where the operation is guarded, and fails with an *apperr.Error of a
// specific kind. Stores are declared here as interfaces so tests can substitute fakes.
package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
)

// UserStore is the credential store
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// OrganizationStore persists partner organizations
type OrganizationStore interface {
	RegisterPartner(ctx context.Context, user *models.User, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	List(ctx context.Context, filter repositories.OrganizationFilter, limit, offset int) ([]*models.Organization, int, error)
	Approve(ctx context.Context, id, adminID string, at time.Time) (bool, error)
	Reject(ctx context.Context, id, reason string) (bool, error)
}

// TrainingStore persists training events
type TrainingStore interface {
	Create(ctx context.Context, t *models.TrainingEvent) error
	GetByID(ctx context.Context, id string) (*models.TrainingEvent, error)
	GetWithPartner(ctx context.Context, id string) (*models.TrainingWithPartner, error)
	List(ctx context.Context, filter repositories.TrainingFilter, limit, offset int) ([]*models.TrainingWithPartner, int, error)
	UpdateContent(ctx context.Context, t *models.TrainingEvent) error
	Approve(ctx context.Context, id, adminID string, at time.Time) (bool, error)
	Reject(ctx context.Context, id, reason string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

// AnalyticsStore runs aggregate queries over approved records
type AnalyticsStore interface {
	DashboardStats(ctx context.Context) (*repositories.DashboardStats, error)
	RecentApproved(ctx context.Context, limit int) ([]*models.TrainingWithPartner, error)
	TrainingsByTheme(ctx context.Context) ([]repositories.ThemeCount, error)
	TrainingsByState(ctx context.Context) ([]repositories.StateCoverage, error)
	ParticipantBreakdown(ctx context.Context) (*models.ParticipantBreakdown, error)
	CoveredStates(ctx context.Context) ([]string, error)
	LowCoverageDistricts(ctx context.Context, limit int) ([]repositories.DistrictCoverage, error)
}

// CertificateStore persists issued certificates
type CertificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error)
	ListByTraining(ctx context.Context, trainingID string) ([]*models.Certificate, error)
}

// Paging defaults for list endpoints
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	// MaxPage keeps the row offset within a Postgres integer
	MaxPage = math.MaxInt32 / MaxPageLimit
)

// PageRequest is a 1-based page of a listing
type PageRequest struct {
	Page  int
	Limit int
}

// normalize clamps the request to sane values
func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

func (p PageRequest) offset() int { return (p.Page - 1) * p.Limit }

// validID reports whether id can name a row. Record ids are UUIDs, so anything
// else is simply not found rather than a database error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Pagination describes the page returned with a listing
type Pagination struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"currentPage"`
}

func newPagination(total int, p PageRequest) Pagination {
	pages := (total + p.Limit - 1) / p.Limit
	return Pagination{Total: total, Pages: pages, CurrentPage: p.Page}
}
