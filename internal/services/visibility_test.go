package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/repositories"
)

func TestVisibleTrainingFilter(t *testing.T) {
	requested := repositories.TrainingFilter{Status: "pending", Theme: "Flood", State: "Assam", PartnerID: "org-1"}

	tests := []struct {
		name       string
		principal  *auth.Principal
		wantStatus string
	}{
		{"anonymous forced to approved", nil, "approved"},
		{"unknown role forced to approved", &auth.Principal{UserID: "u", Role: "viewer"}, "approved"},
		{"partner keeps requested status", &auth.Principal{UserID: "u", Role: "partner"}, "pending"},
		{"admin keeps requested status", &auth.Principal{UserID: "u", Role: "admin"}, "pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VisibleTrainingFilter(tt.principal, requested)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, "Flood", got.Theme)
			assert.Equal(t, "Assam", got.State)
			assert.Equal(t, "org-1", got.PartnerID)
		})
	}
}

func TestVisibleTrainingFilter_EmptyStatus(t *testing.T) {
	assert.Equal(t, "approved", VisibleTrainingFilter(nil, repositories.TrainingFilter{}).Status)
	assert.Equal(t, "", VisibleTrainingFilter(&auth.Principal{UserID: "u", Role: "admin"}, repositories.TrainingFilter{}).Status)
}
