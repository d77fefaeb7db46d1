package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
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

// certificateAlphabet omits characters that are easy to misread (0/O, 1/I)
const certificateAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// maxIDAttempts bounds retries when a generated certificate ID collides
const maxIDAttempts = 3

// CertificateService issues and verifies training certificates
type CertificateService struct {
	certs     CertificateStore
	trainings TrainingStore
	now       func() time.Time
	newID     func(time.Time) (string, error)
}

// NewCertificateService creates a new CertificateService
func NewCertificateService(certs CertificateStore, trainings TrainingStore) *CertificateService {
	return &CertificateService{certs: certs, trainings: trainings, now: time.Now, newID: newCertificateID}
}

// IssueInput names the trainee a certificate is issued to
type IssueInput struct {
	TraineeName    string  `json:"traineeName" binding:"required"`
	CertificateURL *string `json:"certificateUrl"`
}

// newCertificateID returns an ID of the form DTR-YYYY-XXXXXXXX
func newCertificateID(at time.Time) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = certificateAlphabet[int(b[i])%len(certificateAlphabet)]
	}
	return fmt.Sprintf("DTR-%d-%s", at.Year(), b), nil
}

// Issue creates a certificate for a trainee of an approved training.
// Only the owning partner or an admin may issue.
func (s *CertificateService) Issue(ctx context.Context, p *auth.Principal, trainingID string, in IssueInput) (*models.Certificate, error) {
	t, err := s.training(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAct(p, auth.ActionManageCertificates, t.PartnerID) {
		return nil, apperr.Forbidden("Not authorized to issue certificates for this training")
	}
	in.TraineeName = strings.TrimSpace(in.TraineeName)
	if fields := validation.Struct(&in); fields != nil {
		return nil, apperr.Validation("Invalid certificate", fields)
	}
	if t.Status != models.StatusApproved {
		return nil, apperr.Conflict("Certificates can only be issued for approved trainings")
	}

	issuedBy := p.UserID
	now := s.now()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID(now)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		cert := &models.Certificate{
			CertificateID:  id,
			TraineeName:    in.TraineeName,
			TrainingID:     t.ID,
			TrainingTitle:  t.Title,
			IssueDate:      now,
			CertificateURL: in.CertificateURL,
			Verified:       true,
			IssuedBy:       &issuedBy,
		}
		err = s.certs.Create(ctx, cert)
		if errors.Is(err, repositories.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}

		telemetry.CertificatesIssuedTotal.Inc()
		slog.Info("certificate issued", "certificate_id", cert.CertificateID, "training_id", t.ID, "user_id", p.UserID)
		return cert, nil
	}
	return nil, apperr.Internal(errors.New("could not allocate a unique certificate id"))
}

// ListForTraining lists a training's certificates for the owning partner or an admin
func (s *CertificateService) ListForTraining(ctx context.Context, p *auth.Principal, trainingID string) ([]*models.Certificate, error) {
	t, err := s.training(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAct(p, auth.ActionManageCertificates, t.PartnerID) {
		return nil, apperr.Forbidden("Not authorized to view certificates for this training")
	}
	certs, err := s.certs.ListByTraining(ctx, trainingID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return certs, nil
}

// Verify looks up a certificate by its public ID. Anyone may verify.
func (s *CertificateService) Verify(ctx context.Context, certificateID string) (*models.Certificate, error) {
	certificateID = strings.ToUpper(strings.TrimSpace(certificateID))
	cert, err := s.certs.GetByCertificateID(ctx, certificateID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if cert == nil {
		return nil, apperr.NotFound("Certificate not found")
	}
	return cert, nil
}

func (s *CertificateService) training(ctx context.Context, id string) (*models.TrainingEvent, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Training not found")
	}
	t, err := s.trainings.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if t == nil {
		return nil, apperr.NotFound("Training not found")
	}
	return t, nil
}
