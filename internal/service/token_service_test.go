package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryadh-dz/autoecole-api/internal/models"
	"github.com/ryadh-dz/autoecole-api/pkg/config"
	appErrors "github.com/ryadh-dz/autoecole-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateTokenAcceptsValidToken(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "test-secret", models.JWTClaims{
		UserID: "student-1",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestValidateTokenRejectsBadSignature(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "other-secret", models.JWTClaims{UserID: "student-1"})

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "test-secret", models.JWTClaims{
		UserID: "student-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRequiresSubjectIdentity(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "test-secret", models.JWTClaims{Role: models.RoleStudent})

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenChecksIssuer(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "auth.autoecole.dz"})
	raw := signTestToken(t, "test-secret", models.JWTClaims{
		UserID:           "student-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
