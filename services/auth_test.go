package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushnami/api/apperr"
	"pushnami/api/logger"
	"pushnami/api/store"
	"pushnami/api/utils"
)

const testSecret = "test-secret"

func TestAuthCreateAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuth(store.NewMemoryStore(), testSecret, time.Hour, logger.Nop())

	admin, err := auth.CreateAdmin(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", string(admin.HashedPassword))

	token, got, err := auth.Login(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	claims, err := utils.ValidateJWT(token, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, admin.ID.String(), claims.AdminID)
	assert.Equal(t, time.Hour, auth.TTL())
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth := NewAuth(store.NewMemoryStore(), testSecret, time.Hour, logger.Nop())
	_, err := auth.CreateAdmin(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "ops@example.com", "wrong password")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	_, _, err = auth.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestAuthCreateAdminValidation(t *testing.T) {
	ctx := context.Background()
	auth := NewAuth(store.NewMemoryStore(), testSecret, time.Hour, logger.Nop())

	_, err := auth.CreateAdmin(ctx, "", "long enough")
	requireValidation(t, err, "email")
	_, err = auth.CreateAdmin(ctx, "ops@example.com", "short")
	requireValidation(t, err, "password")

	_, err = auth.CreateAdmin(ctx, "ops@example.com", "long enough")
	require.NoError(t, err)
	_, err = auth.CreateAdmin(ctx, "ops@example.com", "long enough")
	requireValidation(t, err, "email")
}

func TestAuthLoginDisabledWithoutSecret(t *testing.T) {
	ctx := context.Background()
	auth := NewAuth(store.NewMemoryStore(), "", time.Hour, logger.Nop())
	_, err := auth.CreateAdmin(ctx, "ops@example.com", "long enough")
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "ops@example.com", "long enough")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}
