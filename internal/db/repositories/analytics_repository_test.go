package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyticsRepo(t *testing.T) (*AnalyticsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAnalyticsRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestDashboardStats(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("SELECT.*AS total_trainings.*AS active_partners.*AS states_covered.*AS total_participants").
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows([]string{"total_trainings", "active_partners", "states_covered", "total_participants"}).
			AddRow(12, 4, 3, 540))

	stats, err := repo.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{TotalTrainings: 12, ActivePartners: 4, StatesCovered: 3, TotalParticipants: 540}, *stats)
}

func TestDashboardStats_Error(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("SELECT").WillReturnError(errDB)

	_, err := repo.DashboardStats(context.Background())
	assert.ErrorIs(t, err, errDB)
}

func TestRecentApproved(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("WHERE t.status = \\$1 ORDER BY t.approved_at DESC NULLS LAST LIMIT \\$2").
		WithArgs("approved", 5).
		WillReturnRows(sampleTrainingWithPartnerRow("approved"))

	recent, err := repo.RecentApproved(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Relief Org", recent[0].Partner.OrganizationName)
}

func TestTrainingsByTheme(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("SELECT theme, COUNT\\(\\*\\) AS count FROM training_events").
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows([]string{"theme", "count"}).
			AddRow("Flood", 5).AddRow("Earthquake", 2))

	themes, err := repo.TrainingsByTheme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ThemeCount{{"Flood", 5}, {"Earthquake", 2}}, themes)
}

func TestTrainingsByState(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("GROUP BY location_state").
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows([]string{"state", "count", "participants"}).
			AddRow("Assam", 3, 120))

	states, err := repo.TrainingsByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []StateCoverage{{State: "Assam", Count: 3, Participants: 120}}, states)
}

func TestParticipantBreakdown(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("SUM\\(participants_government\\)").
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows([]string{"government", "ngo", "volunteers"}).AddRow(10, 20, 30))

	totals, err := repo.ParticipantBreakdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, totals.Government)
	assert.Equal(t, 20, totals.NGO)
	assert.Equal(t, 30, totals.Volunteers)
}

func TestCoveredStates(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("SELECT DISTINCT location_state").
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows([]string{"location_state"}).AddRow("Assam").AddRow("Kerala"))

	states, err := repo.CoveredStates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Assam", "Kerala"}, states)
}

func TestLowCoverageDistricts(t *testing.T) {
	repo, mock := newAnalyticsRepo(t)
	mock.ExpectQuery("GROUP BY location_state, location_district.*ORDER BY count ASC").
		WithArgs("approved", 5).
		WillReturnRows(sqlmock.NewRows([]string{"district", "state", "count"}).
			AddRow("Kamrup", "Assam", 1))

	districts, err := repo.LowCoverageDistricts(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []DistrictCoverage{{District: "Kamrup", State: "Assam", Count: 1}}, districts)
}
