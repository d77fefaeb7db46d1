// Package middleware provides Gin HTTP middleware for authentication, role checks,
// rate limiting, security headers, request ids, metrics and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Security → CORS → RateLimit → Auth → RequireRole → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB work.
// Auth resolves the bearer token into an *auth.Principal; RequireRole and the
// workflow services read from that. Audit logging runs last so only requests
// that reached a handler are recorded.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
)

// Gin context keys set by the auth middleware
const (
	ContextKeyPrincipal = "principal"
	ContextKeyUserID    = "user_id"
	ContextKeyRole      = "role"
)

// UserLoader loads the identity a token refers to
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// authFailure is why a request could not be authenticated
type authFailure struct {
	status  int
	message string
}

// AuthMiddleware requires a valid session token. The identity is re-read on
// every request so role and organization changes apply without a new token.
func AuthMiddleware(tokens *auth.TokenIssuer, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, fail := resolvePrincipal(c, tokens, users)
		if fail != nil {
			c.AbortWithStatusJSON(fail.status, gin.H{"error": fail.message})
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the principal when a valid token is sent and
// otherwise continues anonymously
func OptionalAuthMiddleware(tokens *auth.TokenIssuer, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if p, fail := resolvePrincipal(c, tokens, users); fail == nil {
			setPrincipal(c, p)
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller resolved by the auth middleware, or nil
func PrincipalFrom(c *gin.Context) *auth.Principal {
	v, ok := c.Get(ContextKeyPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}

func setPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(ContextKeyPrincipal, p)
	c.Set(ContextKeyUserID, p.UserID)
	c.Set(ContextKeyRole, p.Role)
}

func resolvePrincipal(c *gin.Context, tokens *auth.TokenIssuer, users UserLoader) (*auth.Principal, *authFailure) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, &authFailure{http.StatusUnauthorized, "Missing authorization header"}
	}
	token, err := auth.ExtractBearerToken(header)
	if err != nil {
		return nil, &authFailure{http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'"}
	}

	claims, err := tokens.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &authFailure{http.StatusUnauthorized, "Token expired"}
		}
		return nil, &authFailure{http.StatusUnauthorized, "Invalid token"}
	}

	user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		slog.Error("failed to load user for token", "user_id", claims.UserID, "error", err)
		return nil, &authFailure{http.StatusInternalServerError, "Failed to load user"}
	}
	if user == nil {
		return nil, &authFailure{http.StatusUnauthorized, "User no longer exists"}
	}
	// a deactivated account loses access even while its token is unexpired
	if !user.IsActive() {
		return nil, &authFailure{http.StatusForbidden, "User account is not active"}
	}

	p := &auth.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}
	if user.OrganizationID != nil {
		p.OrganizationID = *user.OrganizationID
	}
	return p, nil
}
