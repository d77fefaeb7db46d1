// Package trainings serves training events and their certificates.
package trainings

import (
	"context"
	"net/http"

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

// Service is the training workflow
type Service interface {
	Create(ctx context.Context, p *auth.Principal, in services.TrainingInput) (*models.TrainingEvent, error)
	Get(ctx context.Context, id string) (*models.TrainingWithPartner, error)
	List(ctx context.Context, p *auth.Principal, filter repositories.TrainingFilter, page services.PageRequest) (*services.TrainingList, error)
	UpdateContent(ctx context.Context, p *auth.Principal, id string, patch services.TrainingPatch) (*models.TrainingEvent, error)
	SetStatus(ctx context.Context, p *auth.Principal, id, target, reason string) (*models.TrainingEvent, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
}

// CertificateService issues and verifies training certificates
type CertificateService interface {
	Issue(ctx context.Context, p *auth.Principal, trainingID string, in services.IssueInput) (*models.Certificate, error)
	ListForTraining(ctx context.Context, p *auth.Principal, trainingID string) ([]*models.Certificate, error)
	Verify(ctx context.Context, certificateID string) (*models.Certificate, error)
}

// Handlers serves /api/trainings and /api/certificates
type Handlers struct {
	trainings    Service
	certificates CertificateService
}

// NewHandlers creates training handlers
func NewHandlers(trainings Service, certificates CertificateService) *Handlers {
	return &Handlers{trainings: trainings, certificates: certificates}
}

// StatusRequest is the body of a status decision
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
	Reason string `json:"reason" binding:"required_if=Status rejected"`
}

// List returns a page of trainings; anonymous callers and partners only see
// what the visibility rules allow
// GET /api/trainings?status=&organizationId=&theme=&state=&page=&limit=
func (h *Handlers) List(c *gin.Context) {
	filter := repositories.TrainingFilter{
		Status:    c.Query("status"),
		PartnerID: c.Query("organizationId"),
		Theme:     c.Query("theme"),
		State:     c.Query("state"),
	}
	if filter.PartnerID == "" {
		filter.PartnerID = c.Query("partnerId")
	}
	if filter.PartnerID != "" {
		if _, err := uuid.Parse(filter.PartnerID); err != nil {
			respond.Error(c, apperr.Validation("Invalid organizationId", map[string]string{"organizationId": "must be a UUID"}))
			return
		}
	}
	page, limit := respond.PageParams(c)

	list, err := h.trainings.List(c.Request.Context(), middleware.PrincipalFrom(c), filter,
		services.PageRequest{Page: page, Limit: limit})
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one training with its partner summary
// GET /api/trainings/:id
func (h *Handlers) Get(c *gin.Context) {
	training, err := h.trainings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, training)
}

// Create submits a training for review
// POST /api/trainings
func (h *Handlers) Create(c *gin.Context) {
	var in services.TrainingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BindError(c, err)
		return
	}

	training, err := h.trainings.Create(c.Request.Context(), middleware.PrincipalFrom(c), in)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "training.created", "training", training.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Training event created successfully",
		"training": training,
	})
}

// Update patches training content
// PUT /api/trainings/:id
func (h *Handlers) Update(c *gin.Context) {
	var patch services.TrainingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BindError(c, err)
		return
	}

	training, err := h.trainings.UpdateContent(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), patch)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "training.updated", "training", training.ID)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Training updated successfully",
		"training": training,
	})
}

// SetStatus approves or rejects a pending training
// PATCH /api/trainings/:id/status
func (h *Handlers) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	training, err := h.trainings.SetStatus(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), req.Status, req.Reason)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "training."+training.Status, "training", training.ID)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Training " + training.Status + " successfully",
		"training": training,
	})
}

// Delete removes a training
// DELETE /api/trainings/:id
func (h *Handlers) Delete(c *gin.Context) {
	if err := h.trainings.Delete(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "training.deleted", "training", "")
	c.JSON(http.StatusOK, gin.H{"message": "Training deleted successfully"})
}

// IssueCertificate issues a certificate for a trainee of an approved training
// POST /api/trainings/:id/certificates
func (h *Handlers) IssueCertificate(c *gin.Context) {
	var in services.IssueInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BindError(c, err)
		return
	}

	cert, err := h.certificates.Issue(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), in)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "certificate.issued", "certificate", cert.CertificateID)
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Certificate issued successfully",
		"certificate": cert,
	})
}

// ListCertificates lists the certificates of one training
// GET /api/trainings/:id/certificates
func (h *Handlers) ListCertificates(c *gin.Context) {
	certs, err := h.certificates.ListForTraining(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs})
}

// VerifyCertificate lets anyone check a certificate id
// GET /api/certificates/:certificateId
func (h *Handlers) VerifyCertificate(c *gin.Context) {
	cert, err := h.certificates.Verify(c.Request.Context(), c.Param("certificateId"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"certificateId": cert.CertificateID,
		"traineeName":   cert.TraineeName,
		"trainingTitle": cert.TrainingTitle,
		"issueDate":     cert.IssueDate,
		"verified":      cert.Verified,
	})
}
