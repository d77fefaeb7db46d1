package services

import (
	"context"
	"strings"

	"github.com/disaster-training/training-registry/internal/apperr"
	"github.com/disaster-training/training-registry/internal/auth"
	"github.com/disaster-training/training-registry/internal/db/models"
	"github.com/disaster-training/training-registry/internal/validation"
)

type adminCredentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// AdminSeeder is the slice of the user store that admin seeding needs
type AdminSeeder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// SeedAdmin creates an active admin account, or resets the password of an
// existing one. It reports whether a new account was created. An existing
// partner account with the same email is left untouched.
func SeedAdmin(ctx context.Context, users AdminSeeder, email, password string, bcryptCost int) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if fields := validation.Struct(adminCredentials{Email: email, Password: password}); fields != nil {
		return false, apperr.Validation("Invalid admin credentials", fields)
	}

	hash, err := auth.HashPassword(password, bcryptCost)
	if err != nil {
		return false, apperr.Internal(err)
	}

	existing, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		return false, apperr.Internal(err)
	}
	if existing != nil {
		if existing.Role != models.RoleAdmin {
			return false, apperr.Conflict("Email belongs to a partner account")
		}
		if err := users.UpdatePassword(ctx, existing.ID, hash); err != nil {
			return false, apperr.Internal(err)
		}
		return false, nil
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Status:       models.AccountActive,
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		return false, apperr.Internal(err)
	}
	return true, nil
}
