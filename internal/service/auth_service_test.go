package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workhub-api/internal/models"
	appErrors "github.com/noah-isme/workhub-api/pkg/errors"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func baseClaims() models.JWTClaims {
	return models.JWTClaims{
		Email:   "dana@example.com",
		Role:    "authenticated",
		AppRole: models.RoleManager,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "workhub-auth",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "workhub-auth", Audience: "authenticated"})

	claims, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), baseClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, models.RoleManager, claims.AppRole)
}

func TestAuthServiceDefaultsRole(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret})
	c := baseClaims()
	c.AppRole = ""

	claims, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), c))
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, claims.AppRole)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: testSecret, Issuer: "workhub-auth", Audience: "authenticated"})

	expired := baseClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := baseClaims()
	wrongIssuer.Issuer = "someone-else"

	noSubject := baseClaims()
	noSubject.Subject = ""

	noExpiry := baseClaims()
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), baseClaims()),
		"wrong alg":    signToken(t, jwt.SigningMethodHS512, []byte(testSecret), baseClaims()),
		"expired":      signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired),
		"issuer":       signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer),
		"no subject":   signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject),
		"no expiry":    signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}
