package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
)

type fakeAnalytics struct {
	err         error
	recentLimit int
	districtLim int
}

func (f *fakeAnalytics) DashboardStats(context.Context) (*repositories.DashboardStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repositories.DashboardStats{TotalTrainings: 12, ActivePartners: 4, StatesCovered: 3, TotalParticipants: 480}, nil
}

func (f *fakeAnalytics) RecentApproved(_ context.Context, limit int) ([]*models.TrainingWithPartner, error) {
	f.recentLimit = limit
	return []*models.TrainingWithPartner{{TrainingEvent: models.TrainingEvent{ID: "t-1", Title: "Heatwave"}}}, nil
}

func (f *fakeAnalytics) TrainingsByTheme(context.Context) ([]repositories.ThemeCount, error) {
	return []repositories.ThemeCount{{Theme: "Flood", Count: 7}, {Theme: "Cyclone", Count: 5}}, nil
}

func (f *fakeAnalytics) TrainingsByState(context.Context) ([]repositories.StateCoverage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []repositories.StateCoverage{{State: "Assam", Count: 7, Participants: 300}}, nil
}

func (f *fakeAnalytics) ParticipantBreakdown(context.Context) (*models.ParticipantBreakdown, error) {
	return &models.ParticipantBreakdown{Government: 100, NGO: 200, Volunteers: 180}, nil
}

func (f *fakeAnalytics) CoveredStates(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"Kerala", "Assam"}, nil
}

func (f *fakeAnalytics) LowCoverageDistricts(_ context.Context, limit int) ([]repositories.DistrictCoverage, error) {
	f.districtLim = limit
	return []repositories.DistrictCoverage{{District: "Dhubri", State: "Assam", Count: 1}}, nil
}

var testStates = []string{"Assam", "Bihar", "Kerala", "Odisha"}

func TestAnalyticsService_Dashboard(t *testing.T) {
	store := &fakeAnalytics{}
	svc := NewAnalyticsService(store, testStates, 0, 0)

	d, err := svc.Dashboard(context.Background(), adminPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 12, d.Stats.TotalTrainings)
	assert.Equal(t, 480, d.Stats.TotalParticipants)
	require.Len(t, d.RecentActivities, 1)
	assert.Equal(t, 5, store.recentLimit)

	_, err = svc.Dashboard(context.Background(), partnerPrincipal("org-1"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	store.err = errStore
	_, err = svc.Dashboard(context.Background(), adminPrincipal())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestAnalyticsService_Coverage(t *testing.T) {
	store := &fakeAnalytics{}
	svc := NewAnalyticsService(store, testStates, 5, 5)

	c, err := svc.Coverage(context.Background(), partnerPrincipal("org-1"))
	require.NoError(t, err)
	assert.Len(t, c.TrainingsByTheme, 2)
	assert.Equal(t, "Assam", c.TrainingsByState[0].State)
	assert.Equal(t, 200, c.ParticipantBreakdown.NGO)

	_, err = svc.Coverage(context.Background(), adminPrincipal())
	require.NoError(t, err)

	_, err = svc.Coverage(context.Background(), nil)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	store.err = errStore
	_, err = svc.Coverage(context.Background(), adminPrincipal())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestAnalyticsService_Gaps(t *testing.T) {
	store := &fakeAnalytics{}
	svc := NewAnalyticsService(store, testStates, 5, 10)

	g, err := svc.Gaps(context.Background(), adminPrincipal())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bihar", "Odisha"}, g.UncoveredStates)
	require.Len(t, g.LowCoverageDistricts, 1)
	assert.Equal(t, "Dhubri", g.LowCoverageDistricts[0].District)
	assert.Equal(t, 10, store.districtLim)

	_, err = svc.Gaps(context.Background(), partnerPrincipal("org-1"))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUncoveredStates(t *testing.T) {
	assert.Equal(t, []string{}, uncoveredStates(testStates, testStates))
	assert.Equal(t, testStates, uncoveredStates(testStates, nil))
	assert.Equal(t, []string{}, uncoveredStates(nil, []string{"Assam"}))
}
