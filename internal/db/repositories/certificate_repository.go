// certificate_repository.go implements CertificateRepository: issuing certificates for
// approved trainings and looking them up by their public identifier.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/disaster-training/training-registry/internal/db/models"
)

// CertificateRepository handles certificate database operations
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a new CertificateRepository
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, certificate_id, trainee_name, training_id, training_title,
	issue_date, certificate_url, verified, issued_by, created_at`

// Create inserts a certificate. A colliding CertificateID surfaces as ErrDuplicate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	cert.ID = uuid.New().String()
	cert.CreatedAt = time.Now()
	if cert.IssueDate.IsZero() {
		cert.IssueDate = cert.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO certificates (id, certificate_id, trainee_name, training_id, training_title,
			issue_date, certificate_url, verified, issued_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cert.ID, cert.CertificateID, cert.TraineeName, cert.TrainingID, cert.TrainingTitle,
		cert.IssueDate, cert.CertificateURL, cert.Verified, cert.IssuedBy, cert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", classify(err))
	}
	return nil
}

// GetByCertificateID retrieves a certificate by its public identifier
func (r *CertificateRepository) GetByCertificateID(ctx context.Context, certificateID string) (*models.Certificate, error) {
	var cert models.Certificate
	err := r.db.GetContext(ctx, &cert,
		`SELECT `+certificateColumns+` FROM certificates WHERE certificate_id = $1`, certificateID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return &cert, nil
}

// ListByTraining returns the certificates issued for a training, oldest first
func (r *CertificateRepository) ListByTraining(ctx context.Context, trainingID string) ([]*models.Certificate, error) {
	certs := []*models.Certificate{}
	err := r.db.SelectContext(ctx, &certs,
		`SELECT `+certificateColumns+` FROM certificates WHERE training_id = $1 ORDER BY issue_date`, trainingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certs, nil
}

// Count returns the number of issued certificates
func (r *CertificateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM certificates`); err != nil {
		return 0, fmt.Errorf("failed to count certificates: %w", err)
	}
	return n, nil
}
