// training_repository.go implements TrainingRepository: CRUD for training events,
// filtered listing joined with the owning organization, and the conditional
// status updates behind the training approval workflow.
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

// TrainingRepository handles training event database operations
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository creates a new TrainingRepository
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// TrainingFilter narrows a training listing. Empty fields do not filter.
type TrainingFilter struct {
	Status    string
	PartnerID string
	Theme     string
	State     string
}

// Location and breakdown columns are aliased to the nested struct paths sqlx maps onto.
const trainingColumns = `t.id, t.title, t.theme, t.description, t.start_date, t.end_date,
	t.location_state AS "location.state", t.location_district AS "location.district",
	t.location_city AS "location.city", t.location_pincode AS "location.pincode",
	t.latitude AS "location.latitude", t.longitude AS "location.longitude",
	t.location_address AS "location.address",
	t.trainer_name, t.trainer_email, t.participants_count,
	t.participants_government AS "breakdown.government", t.participants_ngo AS "breakdown.ngo",
	t.participants_volunteers AS "breakdown.volunteers",
	t.photos, t.attendance_sheet, t.status, t.rejection_reason, t.partner_id, t.created_by,
	t.created_at, t.updated_at, t.approved_at, t.approved_by`

const partnerSummaryColumns = `p.organization_name AS "partner.organization_name",
	p.contact_person AS "partner.contact_person", p.phone AS "partner.phone"`

const trainingJoin = ` FROM training_events t JOIN partners p ON p.id = t.partner_id`

// Create inserts a training event. ID and timestamps are assigned here; the
// caller decides status and owner.
func (r *TrainingRepository) Create(ctx context.Context, t *models.TrainingEvent) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO training_events (
			id, title, theme, description, start_date, end_date,
			location_state, location_district, location_city, location_pincode,
			latitude, longitude, location_address,
			trainer_name, trainer_email, participants_count,
			participants_government, participants_ngo, participants_volunteers,
			photos, attendance_sheet, status, partner_id, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`,
		t.ID, t.Title, t.Theme, t.Description, t.StartDate, t.EndDate,
		t.Location.State, t.Location.District, t.Location.City, t.Location.Pincode,
		t.Location.Latitude, t.Location.Longitude, t.Location.Address,
		t.TrainerName, t.TrainerEmail, t.ParticipantsCount,
		t.ParticipantBreakdown.Government, t.ParticipantBreakdown.NGO, t.ParticipantBreakdown.Volunteers,
		t.Photos, t.AttendanceSheet, t.Status, t.PartnerID, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create training: %w", err)
	}
	return nil
}

// GetByID retrieves a training event by ID regardless of status
func (r *TrainingRepository) GetByID(ctx context.Context, id string) (*models.TrainingEvent, error) {
	var t models.TrainingEvent
	err := r.db.GetContext(ctx, &t, `SELECT `+trainingColumns+` FROM training_events t WHERE t.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training: %w", err)
	}
	return &t, nil
}

// GetWithPartner retrieves a training event joined with its organization summary
func (r *TrainingRepository) GetWithPartner(ctx context.Context, id string) (*models.TrainingWithPartner, error) {
	var t models.TrainingWithPartner
	err := r.db.GetContext(ctx, &t,
		`SELECT `+trainingColumns+`, `+partnerSummaryColumns+trainingJoin+` WHERE t.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training: %w", err)
	}
	return &t, nil
}

// List returns one page of training events, newest first, with the total match count
func (r *TrainingRepository) List(ctx context.Context, filter TrainingFilter, limit, offset int) ([]*models.TrainingWithPartner, int, error) {
	var where whereClause
	if filter.Status != "" {
		where.add("t.status = $%d", filter.Status)
	}
	if filter.PartnerID != "" {
		where.add("t.partner_id = $%d", filter.PartnerID)
	}
	if filter.Theme != "" {
		where.add("t.theme = $%d", filter.Theme)
	}
	if filter.State != "" {
		where.add("t.location_state = $%d", filter.State)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM training_events t`+where.String(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count trainings: %w", err)
	}

	pageClause, args := where.page(limit, offset)
	query := `SELECT ` + trainingColumns + `, ` + partnerSummaryColumns + trainingJoin +
		where.String() + ` ORDER BY t.created_at DESC` + pageClause

	trainings := []*models.TrainingWithPartner{}
	if err := r.db.SelectContext(ctx, &trainings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list trainings: %w", err)
	}
	return trainings, total, nil
}

// UpdateContent writes the content fields of t. Status, owner and approval
// columns are not part of the statement.
func (r *TrainingRepository) UpdateContent(ctx context.Context, t *models.TrainingEvent) error {
	t.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE training_events SET
			title = $2, theme = $3, description = $4, start_date = $5, end_date = $6,
			location_state = $7, location_district = $8, location_city = $9, location_pincode = $10,
			latitude = $11, longitude = $12, location_address = $13,
			trainer_name = $14, trainer_email = $15, participants_count = $16,
			participants_government = $17, participants_ngo = $18, participants_volunteers = $19,
			photos = $20, attendance_sheet = $21, updated_at = $22
		WHERE id = $1`,
		t.ID, t.Title, t.Theme, t.Description, t.StartDate, t.EndDate,
		t.Location.State, t.Location.District, t.Location.City, t.Location.Pincode,
		t.Location.Latitude, t.Location.Longitude, t.Location.Address,
		t.TrainerName, t.TrainerEmail, t.ParticipantsCount,
		t.ParticipantBreakdown.Government, t.ParticipantBreakdown.NGO, t.ParticipantBreakdown.Volunteers,
		t.Photos, t.AttendanceSheet, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update training: %w", err)
	}
	return requireRow(result)
}

// Approve moves a pending training to approved.
// It reports false when the training was no longer pending.
func (r *TrainingRepository) Approve(ctx context.Context, id, adminID string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE training_events
		SET status = $2, approved_at = $3, approved_by = $4, rejection_reason = NULL, updated_at = $3
		WHERE id = $1 AND status = $5`,
		id, models.StatusApproved, at, adminID, models.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve training: %w", err)
	}
	return affectedOne(result)
}

// Reject moves a pending training to rejected with a reason.
// It reports false when the training was no longer pending.
func (r *TrainingRepository) Reject(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE training_events
		SET status = $2, rejection_reason = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		id, models.StatusRejected, reason, at, models.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject training: %w", err)
	}
	return affectedOne(result)
}

// Delete removes a training event. Certificates go with it via ON DELETE CASCADE.
func (r *TrainingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM training_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete training: %w", err)
	}
	return requireRow(result)
}

// CountByStatus returns training counts keyed by status
func (r *TrainingRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM training_events GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count trainings: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
