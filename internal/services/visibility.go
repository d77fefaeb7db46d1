package services

import (
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
)

// VisibleTrainingFilter applies listing visibility to a requested filter.
// Anonymous callers and unknown roles only ever see approved trainings; admins
// and partners keep whatever they asked for. Single-record reads do not go
// through this filter.
func VisibleTrainingFilter(p *auth.Principal, requested repositories.TrainingFilter) repositories.TrainingFilter {
	if p.IsAdmin() || p.IsPartner() {
		return requested
	}
	requested.Status = models.StatusApproved
	return requested
}
