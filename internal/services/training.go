package services

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
	"github.com/disaster-training/training-registry/internal/telemetry"
	"github.com/disaster-training/training-registry/internal/validation"
)

// dateLayouts are the accepted forms of startDate and endDate
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LocationInput is the nested location object of a training payload
type LocationInput struct {
	State     string `json:"state"`
	District  string `json:"district"`
	City      string `json:"city"`
	Pincode   string `json:"pincode"`
	Address   string `json:"address"`
	Latitude  Number `json:"latitude"`
	Longitude Number `json:"longitude"`
}

// BreakdownInput splits participants by category
type BreakdownInput struct {
	Government Number `json:"government"`
	NGO        Number `json:"ngo"`
	Volunteers Number `json:"volunteers"`
}

// TrainingInput is a training submission. Location may be sent nested or as
// top-level fields (the older form); nested values win. Status and owner are
// not part of the input, so any sent by the client are dropped.
type TrainingInput struct {
	Title                string            `json:"title" binding:"required"`
	Theme                string            `json:"theme" binding:"required"`
	Description          string            `json:"description"`
	StartDate            string            `json:"startDate" binding:"required"`
	EndDate              string            `json:"endDate" binding:"required"`
	Location             *LocationInput    `json:"location"`
	State                string            `json:"state"`
	District             string            `json:"district"`
	City                 string            `json:"city"`
	Pincode              string            `json:"pincode"`
	Address              string            `json:"address"`
	Latitude             Number            `json:"latitude"`
	Longitude            Number            `json:"longitude"`
	TrainerName          string            `json:"trainerName"`
	TrainerEmail         string            `json:"trainerEmail" binding:"omitempty,email"`
	ParticipantsCount    Number            `json:"participantsCount"`
	ParticipantBreakdown *BreakdownInput   `json:"participantBreakdown"`
	Photos               models.MediaFiles `json:"photos"`
	AttendanceSheet      *models.MediaFile `json:"attendanceSheet"`
}

func (in *TrainingInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Theme = strings.TrimSpace(in.Theme)
	in.Description = strings.TrimSpace(in.Description)
	in.StartDate = strings.TrimSpace(in.StartDate)
	in.EndDate = strings.TrimSpace(in.EndDate)
	in.TrainerName = strings.TrimSpace(in.TrainerName)
	in.TrainerEmail = strings.TrimSpace(in.TrainerEmail)
}

func (in *TrainingInput) location() LocationInput {
	loc := LocationInput{
		State: in.State, District: in.District, City: in.City, Pincode: in.Pincode, Address: in.Address,
		Latitude: in.Latitude, Longitude: in.Longitude,
	}
	if n := in.Location; n != nil {
		loc.State = firstNonEmpty(n.State, loc.State)
		loc.District = firstNonEmpty(n.District, loc.District)
		loc.City = firstNonEmpty(n.City, loc.City)
		loc.Pincode = firstNonEmpty(n.Pincode, loc.Pincode)
		loc.Address = firstNonEmpty(n.Address, loc.Address)
		if n.Latitude.Set || n.Latitude.Invalid {
			loc.Latitude = n.Latitude
		}
		if n.Longitude.Set || n.Longitude.Invalid {
			loc.Longitude = n.Longitude
		}
	}
	return loc
}

// LocationPatch changes individual location fields
type LocationPatch struct {
	State     *string `json:"state"`
	District  *string `json:"district"`
	City      *string `json:"city"`
	Pincode   *string `json:"pincode"`
	Address   *string `json:"address"`
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`
}

// BreakdownPatch changes individual participant categories
type BreakdownPatch struct {
	Government *Number `json:"government"`
	NGO        *Number `json:"ngo"`
	Volunteers *Number `json:"volunteers"`
}

// TrainingPatch is a partial content update. Absent fields keep their value;
// an empty latitude or longitude clears it. Status and owner are not patchable.
type TrainingPatch struct {
	Title                *string            `json:"title"`
	Theme                *string            `json:"theme"`
	Description          *string            `json:"description"`
	StartDate            *string            `json:"startDate"`
	EndDate              *string            `json:"endDate"`
	Location             *LocationPatch     `json:"location"`
	State                *string            `json:"state"`
	District             *string            `json:"district"`
	City                 *string            `json:"city"`
	Pincode              *string            `json:"pincode"`
	Address              *string            `json:"address"`
	Latitude             *Number            `json:"latitude"`
	Longitude            *Number            `json:"longitude"`
	TrainerName          *string            `json:"trainerName"`
	TrainerEmail         *string            `json:"trainerEmail"`
	ParticipantsCount    *Number            `json:"participantsCount"`
	ParticipantBreakdown *BreakdownPatch    `json:"participantBreakdown"`
	Photos               *models.MediaFiles `json:"photos"`
	AttendanceSheet      *models.MediaFile  `json:"attendanceSheet"`
}

// StatusDecision is an admin's verdict on a pending training. A rejection
// must carry a reason.
type StatusDecision struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
	Reason string `json:"reason" binding:"required_if=Status rejected"`
}

// TrainingService drives the training approval workflow: pending -> approved | rejected
type TrainingService struct {
	trainings TrainingStore
	now       func() time.Time
}

// NewTrainingService creates a new TrainingService
func NewTrainingService(trainings TrainingStore) *TrainingService {
	return &TrainingService{trainings: trainings, now: time.Now}
}

// TrainingList is one page of trainings
type TrainingList struct {
	Trainings  []*models.TrainingWithPartner `json:"trainings"`
	Pagination Pagination                    `json:"pagination"`
}

// Create records a pending training owned by the caller's organization
func (s *TrainingService) Create(ctx context.Context, p *auth.Principal, in TrainingInput) (*models.TrainingEvent, error) {
	if !p.IsPartner() {
		return nil, apperr.Forbidden("Only partners can create trainings")
	}
	if !auth.CanAct(p, auth.ActionCreateTraining, "") {
		return nil, apperr.Forbidden("Your account is not linked to an organization")
	}

	in.normalize()
	fields := map[string]string{}
	maps.Copy(fields, validation.Struct(&in))

	createdBy := p.UserID
	t := &models.TrainingEvent{
		Title:           in.Title,
		Theme:           in.Theme,
		Description:     in.Description,
		TrainerName:     in.TrainerName,
		TrainerEmail:    in.TrainerEmail,
		Photos:          in.Photos,
		AttendanceSheet: in.AttendanceSheet,
		Status:          models.StatusPending,
		PartnerID:       p.OrganizationID,
		CreatedBy:       &createdBy,
	}

	if d, ok := parseDate(in.StartDate); ok {
		t.StartDate = d
	} else if _, reported := fields["startDate"]; !reported {
		fields["startDate"] = "must be a date (YYYY-MM-DD or RFC 3339)"
	}
	if d, ok := parseDate(in.EndDate); ok {
		t.EndDate = d
	} else if _, reported := fields["endDate"]; !reported {
		fields["endDate"] = "must be a date (YYYY-MM-DD or RFC 3339)"
	}

	switch {
	case in.ParticipantsCount.Invalid:
		fields["participantsCount"] = "must be a whole number"
	case !in.ParticipantsCount.Set:
		fields["participantsCount"] = "is required"
	default:
		setCount(&t.ParticipantsCount, in.ParticipantsCount, "participantsCount", fields)
	}

	loc := in.location()
	t.Location = models.Location{
		State:    strings.TrimSpace(loc.State),
		District: strings.TrimSpace(loc.District),
		City:     strings.TrimSpace(loc.City),
		Pincode:  strings.TrimSpace(loc.Pincode),
		Address:  strings.TrimSpace(loc.Address),
	}
	setCoordinate(&t.Location.Latitude, loc.Latitude, 90, "latitude", fields)
	setCoordinate(&t.Location.Longitude, loc.Longitude, 180, "longitude", fields)

	if b := in.ParticipantBreakdown; b != nil {
		setOptionalCount(&t.ParticipantBreakdown.Government, b.Government, "participantBreakdown.government", fields)
		setOptionalCount(&t.ParticipantBreakdown.NGO, b.NGO, "participantBreakdown.ngo", fields)
		setOptionalCount(&t.ParticipantBreakdown.Volunteers, b.Volunteers, "participantBreakdown.volunteers", fields)
	}

	validateTraining(t, fields)
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid training", fields)
	}

	if err := s.trainings.Create(ctx, t); err != nil {
		return nil, apperr.Internal(err)
	}

	telemetry.TrainingsSubmittedTotal.Inc()
	slog.Info("training submitted", "training_id", t.ID, "org_id", t.PartnerID, "user_id", p.UserID)
	return t, nil
}

// Get returns one training joined with its organization, whatever its status
func (s *TrainingService) Get(ctx context.Context, id string) (*models.TrainingWithPartner, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Training not found")
	}
	t, err := s.trainings.GetWithPartner(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if t == nil {
		return nil, apperr.NotFound("Training not found")
	}
	return t, nil
}

// List returns one page of trainings the caller may see
func (s *TrainingService) List(ctx context.Context, p *auth.Principal, filter repositories.TrainingFilter, page PageRequest) (*TrainingList, error) {
	filter = VisibleTrainingFilter(p, filter)
	page = page.normalize()

	trainings, total, err := s.trainings.List(ctx, filter, page.Limit, page.offset())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &TrainingList{Trainings: trainings, Pagination: newPagination(total, page)}, nil
}

// UpdateContent applies a content patch for the owning partner or an admin
func (s *TrainingService) UpdateContent(ctx context.Context, p *auth.Principal, id string, patch TrainingPatch) (*models.TrainingEvent, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanAct(p, auth.ActionUpdateTraining, t.PartnerID) {
		return nil, apperr.Forbidden("Not authorized to update this training")
	}

	fields := map[string]string{}
	patch.applyTo(t, fields)
	validateTraining(t, fields)
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid training", fields)
	}

	if err := s.trainings.UpdateContent(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrNoRows) {
			return nil, apperr.NotFound("Training not found")
		}
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// SetStatus approves or rejects a pending training. Admin only.
func (s *TrainingService) SetStatus(ctx context.Context, p *auth.Principal, id, target, reason string) (*models.TrainingEvent, error) {
	if !auth.CanAct(p, auth.ActionDecideTraining, "") {
		return nil, apperr.Forbidden("Only admins can update status")
	}
	reason = strings.TrimSpace(reason)
	if fields := validation.Struct(&StatusDecision{Status: target, Reason: reason}); fields != nil {
		return nil, apperr.Validation("Invalid status", fields)
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	var ok bool
	var err error
	if target == models.StatusApproved {
		ok, err = s.trainings.Approve(ctx, id, p.UserID, s.now())
	} else {
		ok, err = s.trainings.Reject(ctx, id, reason, s.now())
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("Training is already " + t.Status)
	}

	telemetry.WorkflowTransitionsTotal.WithLabelValues("training", target).Inc()
	slog.Info("training "+target, "training_id", id, "admin_id", p.UserID)
	return t, nil
}

// Delete removes a training for the owning partner or an admin
func (s *TrainingService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanAct(p, auth.ActionDeleteTraining, t.PartnerID) {
		return apperr.Forbidden("Not authorized to delete this training")
	}
	if err := s.trainings.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNoRows) {
			return apperr.NotFound("Training not found")
		}
		return apperr.Internal(err)
	}
	slog.Info("training deleted", "training_id", id, "user_id", p.UserID)
	return nil
}

func (s *TrainingService) load(ctx context.Context, id string) (*models.TrainingEvent, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Training not found")
	}
	t, err := s.trainings.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if t == nil {
		return nil, apperr.NotFound("Training not found")
	}
	return t, nil
}

func (patch *TrainingPatch) applyTo(t *models.TrainingEvent, fields map[string]string) {
	setString(&t.Title, patch.Title)
	setString(&t.Theme, patch.Theme)
	setString(&t.Description, patch.Description)
	setString(&t.TrainerName, patch.TrainerName)
	setString(&t.TrainerEmail, patch.TrainerEmail)

	if patch.StartDate != nil {
		if d, ok := parseDate(*patch.StartDate); ok {
			t.StartDate = d
		} else {
			fields["startDate"] = "must be a date (YYYY-MM-DD or RFC 3339)"
		}
	}
	if patch.EndDate != nil {
		if d, ok := parseDate(*patch.EndDate); ok {
			t.EndDate = d
		} else {
			fields["endDate"] = "must be a date (YYYY-MM-DD or RFC 3339)"
		}
	}
	if patch.ParticipantsCount != nil && (patch.ParticipantsCount.Set || patch.ParticipantsCount.Invalid) {
		setCount(&t.ParticipantsCount, *patch.ParticipantsCount, "participantsCount", fields)
	}

	// top-level location fields first, nested ones override
	loc := &t.Location
	setString(&loc.State, patch.State)
	setString(&loc.District, patch.District)
	setString(&loc.City, patch.City)
	setString(&loc.Pincode, patch.Pincode)
	setString(&loc.Address, patch.Address)
	patchCoordinate(&loc.Latitude, patch.Latitude, 90, "latitude", fields)
	patchCoordinate(&loc.Longitude, patch.Longitude, 180, "longitude", fields)
	if n := patch.Location; n != nil {
		setString(&loc.State, n.State)
		setString(&loc.District, n.District)
		setString(&loc.City, n.City)
		setString(&loc.Pincode, n.Pincode)
		setString(&loc.Address, n.Address)
		patchCoordinate(&loc.Latitude, n.Latitude, 90, "latitude", fields)
		patchCoordinate(&loc.Longitude, n.Longitude, 180, "longitude", fields)
	}

	if b := patch.ParticipantBreakdown; b != nil {
		patchCount(&t.ParticipantBreakdown.Government, b.Government, "participantBreakdown.government", fields)
		patchCount(&t.ParticipantBreakdown.NGO, b.NGO, "participantBreakdown.ngo", fields)
		patchCount(&t.ParticipantBreakdown.Volunteers, b.Volunteers, "participantBreakdown.volunteers", fields)
	}
	if patch.Photos != nil {
		t.Photos = *patch.Photos
	}
	if patch.AttendanceSheet != nil {
		t.AttendanceSheet = patch.AttendanceSheet
	}
}

// validateTraining checks the model's binding tags and the date order, the
// rules shared by create and update
func validateTraining(t *models.TrainingEvent, fields map[string]string) {
	maps.Copy(fields, validation.Struct(t))
	_, badStart := fields["startDate"]
	_, badEnd := fields["endDate"]
	if !badStart && !badEnd && !t.StartDate.IsZero() && !t.EndDate.IsZero() && t.EndDate.Before(t.StartDate) {
		fields["endDate"] = "must not be before startDate"
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setCount(dst *int, n Number, field string, fields map[string]string) {
	if v, ok := n.count(); ok {
		*dst = v
		return
	}
	fields[field] = "must be a whole number of at least 0"
}

func setOptionalCount(dst *int, n Number, field string, fields map[string]string) {
	if n.Set || n.Invalid {
		setCount(dst, n, field, fields)
	}
}

func patchCount(dst *int, n *Number, field string, fields map[string]string) {
	if n != nil {
		setOptionalCount(dst, *n, field, fields)
	}
}

func setCoordinate(dst **float64, n Number, limit float64, field string, fields map[string]string) {
	v, ok := n.coordinate(limit)
	if !ok {
		fields[field] = "must be a number in range"
		return
	}
	*dst = v
}

func patchCoordinate(dst **float64, n *Number, limit float64, field string, fields map[string]string) {
	if n != nil {
		setCoordinate(dst, *n, limit, field, fields)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
