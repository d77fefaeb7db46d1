package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/db/models"
)

var certificateIDPattern = regexp.MustCompile(`^DTR-2026-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{8}$`)

func newCertificateService() (*CertificateService, *fakeCertificates, *fakeTrainings) {
	certs := &fakeCertificates{}
	trainings := newFakeTrainings()
	svc := NewCertificateService(certs, trainings)
	svc.now = func() time.Time { return time.Date(2026, 7, 9, 12, 0, 0, 0, time.UTC) }
	return svc, certs, trainings
}

func approvedTraining(store *fakeTrainings, orgID string) *models.TrainingEvent {
	t := pendingTraining(store, orgID)
	t.Status = models.StatusApproved
	return t
}

func TestNewCertificateID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := newCertificateID(at)
		require.NoError(t, err)
		assert.Regexp(t, certificateIDPattern, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestCertificateService_Issue(t *testing.T) {
	svc, certs, trainings := newCertificateService()
	tr := approvedTraining(trainings, "org-1")

	cert, err := svc.Issue(context.Background(), partnerPrincipal("org-1"), tr.ID, IssueInput{TraineeName: "  Meera Nair "})
	require.NoError(t, err)
	assert.Regexp(t, certificateIDPattern, cert.CertificateID)
	assert.Equal(t, "Meera Nair", cert.TraineeName)
	assert.Equal(t, tr.ID, cert.TrainingID)
	assert.Equal(t, "Cyclone Drill", cert.TrainingTitle)
	assert.True(t, cert.Verified)
	assert.Equal(t, svc.now(), cert.IssueDate)
	require.NotNil(t, cert.IssuedBy)
	assert.Equal(t, "user-org-1", *cert.IssuedBy)
	assert.Len(t, certs.certs, 1)

	_, err = svc.Issue(context.Background(), adminPrincipal(), tr.ID, IssueInput{TraineeName: "Second Trainee"})
	require.NoError(t, err)
	assert.Len(t, certs.certs, 2)
}

func TestCertificateService_Issue_Errors(t *testing.T) {
	svc, _, trainings := newCertificateService()
	approved := approvedTraining(trainings, "org-1")
	pending := pendingTraining(trainings, "org-1")

	_, err := svc.Issue(context.Background(), partnerPrincipal("org-2"), approved.ID, IssueInput{TraineeName: "X"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.Issue(context.Background(), partnerPrincipal("org-1"), approved.ID, IssueInput{TraineeName: " "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Issue(context.Background(), partnerPrincipal("org-1"), pending.ID, IssueInput{TraineeName: "X"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.Issue(context.Background(), adminPrincipal(), fakeID(999), IssueInput{TraineeName: "X"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCertificateService_Issue_RetriesOnCollision(t *testing.T) {
	svc, certs, trainings := newCertificateService()
	tr := approvedTraining(trainings, "org-1")
	certs.certs = append(certs.certs, &models.Certificate{CertificateID: "DTR-2026-TAKEN000"})

	ids := []string{"DTR-2026-TAKEN000", "DTR-2026-FRESH222"}
	svc.newID = func(time.Time) (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	cert, err := svc.Issue(context.Background(), adminPrincipal(), tr.ID, IssueInput{TraineeName: "X"})
	require.NoError(t, err)
	assert.Equal(t, "DTR-2026-FRESH222", cert.CertificateID)
}

func TestCertificateService_Issue_GivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, certs, trainings := newCertificateService()
	tr := approvedTraining(trainings, "org-1")
	certs.certs = append(certs.certs, &models.Certificate{CertificateID: "DTR-2026-TAKEN000"})
	svc.newID = func(time.Time) (string, error) { return "DTR-2026-TAKEN000", nil }

	_, err := svc.Issue(context.Background(), adminPrincipal(), tr.ID, IssueInput{TraineeName: "X"})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestCertificateService_Issue_IDGeneratorFailure(t *testing.T) {
	svc, _, trainings := newCertificateService()
	tr := approvedTraining(trainings, "org-1")
	svc.newID = func(time.Time) (string, error) { return "", errors.New("entropy exhausted") }

	_, err := svc.Issue(context.Background(), adminPrincipal(), tr.ID, IssueInput{TraineeName: "X"})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestCertificateService_ListForTraining(t *testing.T) {
	svc, _, trainings := newCertificateService()
	tr := approvedTraining(trainings, "org-1")
	other := approvedTraining(trainings, "org-2")

	_, err := svc.Issue(context.Background(), adminPrincipal(), tr.ID, IssueInput{TraineeName: "A"})
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), adminPrincipal(), other.ID, IssueInput{TraineeName: "B"})
	require.NoError(t, err)

	list, err := svc.ListForTraining(context.Background(), partnerPrincipal("org-1"), tr.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].TraineeName)

	_, err = svc.ListForTraining(context.Background(), partnerPrincipal("org-1"), other.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestCertificateService_Verify(t *testing.T) {
	svc, _, trainings := newCertificateService()
	tr := approvedTraining(trainings, "org-1")
	cert, err := svc.Issue(context.Background(), adminPrincipal(), tr.ID, IssueInput{TraineeName: "A"})
	require.NoError(t, err)

	got, err := svc.Verify(context.Background(), "  "+strings.ToLower(cert.CertificateID)+" ")
	require.NoError(t, err)
	assert.Equal(t, cert.CertificateID, got.CertificateID)

	_, err = svc.Verify(context.Background(), "DTR-2026-NOPE0000")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
