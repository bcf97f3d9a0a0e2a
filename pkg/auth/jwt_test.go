package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medibook-api/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(testSecret, "medibook-api", time.Hour)
	now := time.Now()

	token, expiresAt, err := svc.GenerateAdminToken(now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, "medibook-api", claims.Issuer)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewJWTService(testSecret, "medibook-api", time.Hour)

	expired, _, err := svc.GenerateAdminToken(time.Now().Add(-2 * time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService("another-secret-another-secret-xx", "medibook-api", time.Hour)
	foreign, _, err := other.GenerateAdminToken(time.Now())
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewJWTService(testSecret, "someone-else", time.Hour)
	token, _, err := wrongIssuer.GenerateAdminToken(time.Now())
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": model.RoleAdmin, "iss": "medibook-api"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
