// organization_repository.go implements OrganizationRepository: partner registration
// (account + organization in one transaction), lookups, listing, and the conditional
// status updates behind the partner approval workflow.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/disaster-training/training-registry/internal/db/models"
)

// OrganizationRepository handles partner organization database operations
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new OrganizationRepository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// OrganizationFilter narrows a partner listing
type OrganizationFilter struct {
	Status string
}

const organizationColumns = `id, organization_name, organization_type, state, district, address,
	contact_person, email, phone, documents, status, rejection_reason, user_id,
	created_at, approved_at, approved_by`

// RegisterPartner creates the partner account, its organization, and the link
// between them in a single transaction. IDs and timestamps are assigned here.
func (r *OrganizationRepository) RegisterPartner(ctx context.Context, user *models.User, org *models.Organization) error {
	now := time.Now()
	user.ID = uuid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt, user.UpdatedAt = now, now
	org.ID = uuid.New().String()
	org.UserID = user.ID
	org.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin registration: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, organization_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, user.Role, user.Status, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create partner account: %w", classify(err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO partners (id, organization_name, organization_type, state, district, address,
			contact_person, email, phone, documents, status, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		org.ID, org.OrganizationName, org.OrganizationType, org.State, org.District, org.Address,
		org.ContactPerson, org.Email, org.Phone, org.Documents, org.Status, org.UserID, org.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", classify(err))
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET organization_id = $1, updated_at = $2 WHERE id = $3`,
		org.ID, now, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to link organization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	user.OrganizationID = &org.ID
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.GetContext(ctx, &org, `SELECT `+organizationColumns+` FROM partners WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// List returns one page of organizations, newest first, with the total match count
func (r *OrganizationRepository) List(ctx context.Context, filter OrganizationFilter, limit, offset int) ([]*models.Organization, int, error) {
	where := ""
	args := []interface{}{}
	if filter.Status != "" {
		where = ` WHERE status = $1`
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM partners`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM partners%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		organizationColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	orgs := []*models.Organization{}
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, total, nil
}

// Approve moves a pending organization to approved and activates its account in
// one transaction. It reports false when the organization was no longer pending.
func (r *OrganizationRepository) Approve(ctx context.Context, id, adminID string, at time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin approval: %w", err)
	}
	defer tx.Rollback()

	var userID string
	err = tx.QueryRowxContext(ctx, `
		UPDATE partners
		SET status = $2, approved_at = $3, approved_by = $4, rejection_reason = NULL
		WHERE id = $1 AND status = $5
		RETURNING user_id`,
		id, models.StatusApproved, at, adminID, models.StatusPending,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to approve organization: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`,
		userID, models.AccountActive, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to activate partner account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit approval: %w", err)
	}
	return true, nil
}

// Reject moves a pending organization to rejected with a reason.
// It reports false when the organization was no longer pending.
func (r *OrganizationRepository) Reject(ctx context.Context, id, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE partners SET status = $2, rejection_reason = $3
		WHERE id = $1 AND status = $4`,
		id, models.StatusRejected, reason, models.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject organization: %w", err)
	}
	return affectedOne(result)
}

// CountByStatus returns organization counts keyed by status
func (r *OrganizationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM partners GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
