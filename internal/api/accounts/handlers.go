// Package accounts serves registration, login and session endpoints under /api/auth.
package accounts

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/api/respond"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/middleware"
	"github.com/disaster-training/training-registry/internal/services"
)

// Service is the account workflow the handlers drive
type Service interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error)
	Authenticate(ctx context.Context, email, password, role string) (*services.Session, error)
	Refresh(ctx context.Context, p *auth.Principal) (*services.Session, error)
	Me(ctx context.Context, p *auth.Principal) (*services.UserDetail, error)
}

// Handlers serves /api/auth
type Handlers struct {
	accounts Service
}

// NewHandlers creates account handlers
func NewHandlers(accounts Service) *Handlers {
	return &Handlers{accounts: accounts}
}

// LoginRequest is the login body. Role is the role the client claims to log in as.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=admin partner"`
}

// Register creates a pending partner organization and its inactive user
// POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BindError(c, err)
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}

	middleware.SetAuditAction(c, "auth.registered", "partner", result.Partner.ID)
	c.JSON(http.StatusCreated, result)
}

// Login checks credentials and issues a session token
// POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	session, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Refresh issues a new token for the caller
// POST /api/auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	session, err := h.accounts.Refresh(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Me returns the caller's account and organization
// GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.accounts.Me(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
