package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
)

// AnalyticsService serves the dashboard, coverage and gap reports
type AnalyticsService struct {
	store                AnalyticsStore
	states               []string
	recentActivities     int
	lowCoverageDistricts int
}

// NewAnalyticsService creates a new AnalyticsService. states is the full list
// gap analysis compares coverage against.
func NewAnalyticsService(store AnalyticsStore, states []string, recentActivities, lowCoverageDistricts int) *AnalyticsService {
	if recentActivities < 1 {
		recentActivities = 5
	}
	if lowCoverageDistricts < 1 {
		lowCoverageDistricts = 5
	}
	return &AnalyticsService{
		store:                store,
		states:               states,
		recentActivities:     recentActivities,
		lowCoverageDistricts: lowCoverageDistricts,
	}
}

// Dashboard is the admin overview
type Dashboard struct {
	Stats            repositories.DashboardStats   `json:"stats"`
	RecentActivities []*models.TrainingWithPartner `json:"recentActivities"`
}

// Coverage groups approved trainings by theme and state
type Coverage struct {
	TrainingsByTheme     []repositories.ThemeCount    `json:"trainingsByTheme"`
	TrainingsByState     []repositories.StateCoverage `json:"trainingsByState"`
	ParticipantBreakdown models.ParticipantBreakdown  `json:"participantBreakdown"`
}

// Gaps lists states and districts lacking approved trainings
type Gaps struct {
	UncoveredStates      []string                        `json:"uncoveredStates"`
	LowCoverageDistricts []repositories.DistrictCoverage `json:"lowCoverageDistricts"`
}

// Dashboard returns headline totals and recent approvals. Admin only.
func (s *AnalyticsService) Dashboard(ctx context.Context, p *auth.Principal) (*Dashboard, error) {
	if !auth.CanAct(p, auth.ActionViewDashboard, "") {
		return nil, apperr.Forbidden("Only admins can access dashboard")
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.store.DashboardStats(gctx)
		if err != nil {
			return err
		}
		d.Stats = *stats
		return nil
	})
	g.Go(func() error {
		recent, err := s.store.RecentApproved(gctx, s.recentActivities)
		d.RecentActivities = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err)
	}
	return &d, nil
}

// Coverage returns approved trainings grouped by theme and state. Any signed-in role.
func (s *AnalyticsService) Coverage(ctx context.Context, p *auth.Principal) (*Coverage, error) {
	if !auth.CanAct(p, auth.ActionViewCoverage, "") {
		return nil, apperr.Forbidden("Insufficient permissions")
	}

	var c Coverage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		themes, err := s.store.TrainingsByTheme(gctx)
		c.TrainingsByTheme = themes
		return err
	})
	g.Go(func() error {
		states, err := s.store.TrainingsByState(gctx)
		c.TrainingsByState = states
		return err
	})
	g.Go(func() error {
		totals, err := s.store.ParticipantBreakdown(gctx)
		if err != nil {
			return err
		}
		c.ParticipantBreakdown = *totals
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal(err)
	}
	return &c, nil
}

// Gaps compares covered states against the configured list and finds the
// least-covered districts. Admin only.
func (s *AnalyticsService) Gaps(ctx context.Context, p *auth.Principal) (*Gaps, error) {
	if !auth.CanAct(p, auth.ActionViewGaps, "") {
		return nil, apperr.Forbidden("Only admins can access gap analysis")
	}

	covered, err := s.store.CoveredStates(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	districts, err := s.store.LowCoverageDistricts(ctx, s.lowCoverageDistricts)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &Gaps{
		UncoveredStates:      uncoveredStates(s.states, covered),
		LowCoverageDistricts: districts,
	}, nil
}

// uncoveredStates returns the members of all not present in covered, in the order of all
func uncoveredStates(all, covered []string) []string {
	seen := make(map[string]struct{}, len(covered))
	for _, st := range covered {
		seen[st] = struct{}{}
	}
	out := []string{}
	for _, st := range all {
		if _, ok := seen[st]; !ok {
			out = append(out, st)
		}
	}
	return out
}
