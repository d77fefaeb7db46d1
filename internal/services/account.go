package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/db/repositories"
	"github.com/disaster-training/training-registry/internal/telemetry"
	"github.com/disaster-training/training-registry/internal/validation"
)

// AccountService registers partners and issues sessions
type AccountService struct {
	users      UserStore
	orgs       OrganizationStore
	tokens     *auth.TokenIssuer
	bcryptCost int
}

// NewAccountService creates a new AccountService
func NewAccountService(users UserStore, orgs OrganizationStore, tokens *auth.TokenIssuer, bcryptCost int) *AccountService {
	return &AccountService{users: users, orgs: orgs, tokens: tokens, bcryptCost: bcryptCost}
}

// RegisterInput is a partner registration request
type RegisterInput struct {
	Email            string           `json:"email" binding:"required,email"`
	Password         string           `json:"password" binding:"required,min=6"`
	OrganizationName string           `json:"organizationName" binding:"required"`
	OrganizationType string           `json:"organizationType" binding:"required,oneof=govt ngo private training"`
	State            string           `json:"state" binding:"required"`
	District         string           `json:"district" binding:"required"`
	Address          string           `json:"address"`
	ContactPerson    string           `json:"contactPerson" binding:"required"`
	Phone            string           `json:"phone" binding:"required"`
	Documents        models.Documents `json:"documents"`
}

// RegisteredPartner summarises a new registration
type RegisteredPartner struct {
	ID               string `json:"id"`
	OrganizationName string `json:"organizationName"`
	Status           string `json:"status"`
}

// RegisterResult is returned by Register
type RegisterResult struct {
	Message string            `json:"message"`
	Partner RegisteredPartner `json:"partner"`
}

// Session is a signed token plus the user projection the frontend stores
type Session struct {
	Message   string      `json:"message,omitempty"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *UserDetail `json:"user,omitempty"`
}

// UserDetail is the identity merged with its organization's contact details
type UserDetail struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Role             string  `json:"role"`
	OrganizationID   *string `json:"organizationId"`
	AccountStatus    string  `json:"accountStatus"`
	OrganizationName string  `json:"organizationName,omitempty"`
	ContactPerson    string  `json:"contactPerson,omitempty"`
	Phone            string  `json:"phone,omitempty"`
	Status           string  `json:"status,omitempty"` // organization approval status
}

func (in *RegisterInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	in.OrganizationType = strings.TrimSpace(in.OrganizationType)
	in.State = strings.TrimSpace(in.State)
	in.District = strings.TrimSpace(in.District)
	in.Address = strings.TrimSpace(in.Address)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.Phone = strings.TrimSpace(in.Phone)
}

// Register creates an inactive partner identity and its pending organization
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.normalize()
	if fields := validation.Struct(in); fields != nil {
		return nil, apperr.Validation("Invalid registration", fields)
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		return nil, apperr.Conflict("Email already registered")
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RolePartner,
		Status:       models.AccountInactive,
	}
	org := &models.Organization{
		OrganizationName: in.OrganizationName,
		OrganizationType: in.OrganizationType,
		State:            in.State,
		District:         in.District,
		Address:          in.Address,
		ContactPerson:    in.ContactPerson,
		Email:            in.Email,
		Phone:            in.Phone,
		Documents:        in.Documents,
		Status:           models.StatusPending,
	}
	if err := s.orgs.RegisterPartner(ctx, user, org); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, apperr.Internal(err)
	}

	telemetry.PartnerRegistrationsTotal.Inc()
	slog.Info("partner registered", "org_id", org.ID, "user_id", user.ID)

	return &RegisterResult{
		Message: "Registration submitted. Awaiting admin approval.",
		Partner: RegisteredPartner{ID: org.ID, OrganizationName: org.OrganizationName, Status: org.Status},
	}, nil
}

// Authenticate checks credentials in a fixed order and issues a session.
// Unknown email, role mismatch and wrong password all yield InvalidCredentials
// so callers cannot tell which accounts exist or what role they hold.
func (s *AccountService) Authenticate(ctx context.Context, email, password, role string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required", nil)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Internal(err)
	}
	if user == nil || user.Role != role || !auth.CheckPassword(user.PasswordHash, password) {
		telemetry.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperr.InvalidCredentials()
	}
	if !user.IsActive() {
		telemetry.LoginAttemptsTotal.WithLabelValues("account_inactive").Inc()
		return nil, apperr.AccountInactive()
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	session.Message = "Login successful"
	return session, nil
}

// Refresh issues a fresh token for the caller's current identity
func (s *AccountService) Refresh(ctx context.Context, p *auth.Principal) (*Session, error) {
	user, err := s.currentUser(ctx, p)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

// Me returns the caller's user projection
func (s *AccountService) Me(ctx context.Context, p *auth.Principal) (*UserDetail, error) {
	user, err := s.currentUser(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, user)
}

func (s *AccountService) currentUser(ctx context.Context, p *auth.Principal) (*models.User, error) {
	if p == nil || p.UserID == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}
	user, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("User no longer exists")
	}
	return user, nil
}

func (s *AccountService) issue(ctx context.Context, user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	detail, err := s.detail(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: detail}, nil
}

// detail merges the organization's contact details into the identity when one is linked
func (s *AccountService) detail(ctx context.Context, user *models.User) (*UserDetail, error) {
	d := &UserDetail{
		ID:             user.ID,
		Email:          user.Email,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		AccountStatus:  user.Status,
	}
	if user.OrganizationID == nil || *user.OrganizationID == "" {
		return d, nil
	}
	org, err := s.orgs.GetByID(ctx, *user.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if org != nil {
		d.OrganizationName = org.OrganizationName
		d.ContactPerson = org.ContactPerson
		d.Phone = org.Phone
		d.Status = org.Status
	}
	return d, nil
}
