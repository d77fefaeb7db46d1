package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/db/models"
)

func newPartnerService() (*PartnerService, *fakeAccounts) {
	store := newFakeAccounts()
	svc := NewPartnerService(store)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func pendingPartner(store *fakeAccounts) *models.Organization {
	user := store.addUser(&models.User{Email: "p@example.org", Role: models.RolePartner, Status: models.AccountInactive})
	org := store.addOrg(&models.Organization{OrganizationName: "Flood Watch", Status: models.StatusPending, UserID: user.ID})
	user.OrganizationID = &org.ID
	return org
}

func TestPartnerService_List(t *testing.T) {
	svc, store := newPartnerService()
	store.addOrg(&models.Organization{OrganizationName: "A", Status: models.StatusApproved})
	store.addOrg(&models.Organization{OrganizationName: "B", Status: models.StatusApproved})
	store.addOrg(&models.Organization{OrganizationName: "C", Status: models.StatusPending})

	list, err := svc.List(context.Background(), adminPrincipal(), "", PageRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Partners, 2)
	assert.Equal(t, Pagination{Total: 2, Pages: 1, CurrentPage: 1}, list.Pagination)

	list, err = svc.List(context.Background(), adminPrincipal(), models.StatusPending, PageRequest{})
	require.NoError(t, err)
	require.Len(t, list.Partners, 1)
	assert.Equal(t, "C", list.Partners[0].OrganizationName)

	list, err = svc.List(context.Background(), adminPrincipal(), "", PageRequest{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list.Partners, 1)
	assert.Equal(t, Pagination{Total: 2, Pages: 2, CurrentPage: 2}, list.Pagination)
}

func TestPartnerService_List_Errors(t *testing.T) {
	svc, store := newPartnerService()

	_, err := svc.List(context.Background(), partnerPrincipal("org-1"), "", PageRequest{})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.List(context.Background(), nil, "", PageRequest{})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.List(context.Background(), adminPrincipal(), "archived", PageRequest{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	store.err = errStore
	_, err = svc.List(context.Background(), adminPrincipal(), "", PageRequest{})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestPartnerService_Approve(t *testing.T) {
	svc, store := newPartnerService()
	org := pendingPartner(store)

	got, err := svc.Approve(context.Background(), adminPrincipal(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "admin-1", *got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, svc.now(), *got.ApprovedAt)

	user, err := store.GetUserByID(context.Background(), org.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountActive, user.Status)

	_, err = svc.Approve(context.Background(), adminPrincipal(), org.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Organization is already approved")
}

func TestPartnerService_Approve_Errors(t *testing.T) {
	svc, store := newPartnerService()
	org := pendingPartner(store)

	_, err := svc.Approve(context.Background(), partnerPrincipal(org.ID), org.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.Approve(context.Background(), adminPrincipal(), fakeID(999))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	store.lostRace = true
	_, err = svc.Approve(context.Background(), adminPrincipal(), org.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPartnerService_Reject(t *testing.T) {
	svc, store := newPartnerService()
	org := pendingPartner(store)

	_, err := svc.Reject(context.Background(), adminPrincipal(), org.ID, "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	got, err := svc.Reject(context.Background(), adminPrincipal(), org.ID, " incomplete documents ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "incomplete documents", *got.RejectionReason)

	user, err := store.GetUserByID(context.Background(), org.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountInactive, user.Status)

	_, err = svc.Approve(context.Background(), adminPrincipal(), org.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPartnerService_Reject_Forbidden(t *testing.T) {
	svc, store := newPartnerService()
	org := pendingPartner(store)

	_, err := svc.Reject(context.Background(), partnerPrincipal("org-9"), org.ID, "spam")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
