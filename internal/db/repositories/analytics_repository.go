// analytics_repository.go implements AnalyticsRepository: read-only aggregates over
// approved training events and organizations, computed in SQL.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/disaster-training/training-registry/internal/db/models"
)

// AnalyticsRepository runs aggregate queries. Every query counts approved records only.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository creates a new AnalyticsRepository
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// DashboardStats are the headline totals
type DashboardStats struct {
	TotalTrainings    int `db:"total_trainings" json:"totalTrainings"`
	ActivePartners    int `db:"active_partners" json:"activePartners"`
	StatesCovered     int `db:"states_covered" json:"statesCovered"`
	TotalParticipants int `db:"total_participants" json:"totalParticipants"`
}

// ThemeCount is the number of approved trainings for one theme
type ThemeCount struct {
	Theme string `db:"theme" json:"theme"`
	Count int    `db:"count" json:"count"`
}

// StateCoverage aggregates approved trainings for one state
type StateCoverage struct {
	State        string `db:"state" json:"state"`
	Count        int    `db:"count" json:"count"`
	Participants int    `db:"participants" json:"participants"`
}

// DistrictCoverage is the number of approved trainings in one district
type DistrictCoverage struct {
	District string `db:"district" json:"district"`
	State    string `db:"state" json:"state"`
	Count    int    `db:"count" json:"count"`
}

// DashboardStats computes the headline totals in one round trip
func (r *AnalyticsRepository) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM training_events WHERE status = $1) AS total_trainings,
			(SELECT COUNT(*) FROM partners WHERE status = $1) AS active_partners,
			(SELECT COUNT(DISTINCT location_state) FROM training_events
				WHERE status = $1 AND location_state <> '') AS states_covered,
			(SELECT COALESCE(SUM(participants_count), 0) FROM training_events WHERE status = $1) AS total_participants`,
		models.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}
	return &stats, nil
}

// RecentApproved returns the most recently approved trainings with their organization
func (r *AnalyticsRepository) RecentApproved(ctx context.Context, limit int) ([]*models.TrainingWithPartner, error) {
	trainings := []*models.TrainingWithPartner{}
	err := r.db.SelectContext(ctx, &trainings,
		`SELECT `+trainingColumns+`, `+partnerSummaryColumns+trainingJoin+`
		WHERE t.status = $1 ORDER BY t.approved_at DESC NULLS LAST LIMIT $2`,
		models.StatusApproved, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent trainings: %w", err)
	}
	return trainings, nil
}

// TrainingsByTheme counts approved trainings per theme, largest first
func (r *AnalyticsRepository) TrainingsByTheme(ctx context.Context) ([]ThemeCount, error) {
	rows := []ThemeCount{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT theme, COUNT(*) AS count FROM training_events
		WHERE status = $1 GROUP BY theme ORDER BY count DESC, theme`,
		models.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group trainings by theme: %w", err)
	}
	return rows, nil
}

// TrainingsByState counts approved trainings and participants per state
func (r *AnalyticsRepository) TrainingsByState(ctx context.Context) ([]StateCoverage, error) {
	rows := []StateCoverage{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT location_state AS state, COUNT(*) AS count,
			COALESCE(SUM(participants_count), 0) AS participants
		FROM training_events
		WHERE status = $1 GROUP BY location_state ORDER BY count DESC, location_state`,
		models.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group trainings by state: %w", err)
	}
	return rows, nil
}

// ParticipantBreakdown sums participant categories across approved trainings
func (r *AnalyticsRepository) ParticipantBreakdown(ctx context.Context) (*models.ParticipantBreakdown, error) {
	var totals models.ParticipantBreakdown
	err := r.db.GetContext(ctx, &totals, `
		SELECT COALESCE(SUM(participants_government), 0) AS government,
			COALESCE(SUM(participants_ngo), 0) AS ngo,
			COALESCE(SUM(participants_volunteers), 0) AS volunteers
		FROM training_events WHERE status = $1`,
		models.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum participant breakdown: %w", err)
	}
	return &totals, nil
}

// CoveredStates lists the distinct states with at least one approved training
func (r *AnalyticsRepository) CoveredStates(ctx context.Context) ([]string, error) {
	states := []string{}
	err := r.db.SelectContext(ctx, &states, `
		SELECT DISTINCT location_state FROM training_events
		WHERE status = $1 AND location_state <> '' ORDER BY location_state`,
		models.StatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list covered states: %w", err)
	}
	return states, nil
}

// LowCoverageDistricts returns the districts with the fewest approved trainings.
// Districts are keyed by (state, district) since names repeat across states.
func (r *AnalyticsRepository) LowCoverageDistricts(ctx context.Context, limit int) ([]DistrictCoverage, error) {
	rows := []DistrictCoverage{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT location_district AS district, location_state AS state, COUNT(*) AS count
		FROM training_events
		WHERE status = $1 AND location_district <> ''
		GROUP BY location_state, location_district
		ORDER BY count ASC, location_state, location_district
		LIMIT $2`,
		models.StatusApproved, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute district coverage: %w", err)
	}
	return rows, nil
}
