// Package auth holds the session and authorization primitives of the registry:
// HS256 session tokens (TokenIssuer), bcrypt password hashing, and the CanAct
// policy consulted by every workflow operation.
//
// See internal/middleware/auth.go for the request-time logic that resolves a
// bearer token into a Principal.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the session lifetime when none is configured
const DefaultTokenTTL = 7 * 24 * time.Hour

// MinSecretLength is the shortest accepted signing secret outside dev mode
const MinSecretLength = 32

// Claims represents the session token claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens with a shared secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewTokenIssuer validates the secret and builds an issuer.
// In dev mode an empty secret is replaced by a random one (sessions then do
// not survive restarts); otherwise an empty or short secret is an error.
func NewTokenIssuer(secret string, ttl time.Duration, issuer string, devMode bool) (*TokenIssuer, error) {
	if secret == "" {
		if !devMode {
			return nil, errors.New("auth.jwt_secret is required outside dev mode; generate one with scripts/generate-key.go")
		}
		generated, err := generateRandomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate dev secret: %w", err)
		}
		slog.Warn("auth.jwt_secret not set, using an auto-generated secret; sessions will not persist across restarts")
		secret = generated
	} else if len(secret) < MinSecretLength && !devMode {
		return nil, fmt.Errorf("auth.jwt_secret must be at least %d characters", MinSecretLength)
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if issuer == "" {
		issuer = "training-registry"
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for the given identity and returns it with its expiry
func (i *TokenIssuer) Issue(userID, email, role string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.issuer,
			Subject:   userID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies a token's signature, issuer and expiry and returns its claims.
// Expired tokens fail with an error matching jwt.ErrTokenExpired.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

// ExtractBearerToken extracts the token from an Authorization header.
// Expected format: "Bearer <token>"
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}
	return token, nil
}
