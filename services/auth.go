package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/models"
	"pushnami/api/utils"
)

const minPasswordLength = 8

// Auth issues admin session tokens.
type Auth struct {
	admins AdminStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

func NewAuth(admins AdminStore, secret string, ttl time.Duration, log *logger.Logger) *Auth {
	return &Auth{admins: admins, secret: []byte(secret), ttl: ttl, log: log.With("service", "Auth")}
}

// CreateAdmin hashes the password and stores a new admin account.
func (a *Auth) CreateAdmin(ctx context.Context, email, password string) (*models.Admin, error) {
	if email == "" {
		return nil, apperr.Invalid("email", "email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Invalid("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	admin, err := a.admins.CreateAdmin(ctx, email, hashed)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Invalid("email", "an admin with this email already exists")
		}
		return nil, err
	}
	a.log.Info("Admin created", "admin_id", admin.ID, "email", admin.Email)
	return admin, nil
}

// Login checks credentials and returns a signed token. Unknown emails and
// wrong passwords both yield apperr.ErrUnauthorized.
func (a *Auth) Login(ctx context.Context, email, password string) (string, *models.Admin, error) {
	if len(a.secret) == 0 {
		return "", nil, fmt.Errorf("login disabled: JWT_SECRET_KEY is not configured: %w", apperr.ErrUnauthorized)
	}
	admin, err := a.admins.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, apperr.ErrUnauthorized
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword(admin.HashedPassword, []byte(password)); err != nil {
		a.log.Warn("Login failed: password mismatch", "email", email)
		return "", nil, apperr.ErrUnauthorized
	}
	token, err := utils.GenerateJWT(admin, a.secret, a.ttl)
	if err != nil {
		return "", nil, err
	}
	a.log.Info("Admin logged in", "admin_id", admin.ID)
	return token, admin, nil
}

func (a *Auth) TTL() time.Duration {
	return a.ttl
}
