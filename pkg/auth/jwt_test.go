package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/bloodlink-api/internal/model"
)

func testUser() *model.User {
	u := &model.User{
		Email: "donor@example.com",
		Role:  model.UserRoleDonor,
	}
	u.ID = uuid.New()
	return u
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService(Config{Secret: "secret", RefreshSecret: "refresh", ExpiryHours: 1})
	user := testUser()

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, model.UserRoleDonor, claims.Role)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc := NewJWTService(Config{Secret: "secret", RefreshSecret: "refresh", ExpiryHours: 1})
	user := testUser()

	token, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestAccessAndRefreshTokensAreNotInterchangeable(t *testing.T) {
	svc := NewJWTService(Config{Secret: "secret", RefreshSecret: "refresh", ExpiryHours: 1})
	user := testUser()

	access, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	refresh, err := svc.GenerateRefreshToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err, "access token must not pass refresh validation")
	_, err = svc.ValidateToken(refresh)
	assert.Error(t, err, "refresh token must not pass access validation")
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService(Config{Secret: "secret-a", RefreshSecret: "refresh", ExpiryHours: 1})
	verifier := NewJWTService(Config{Secret: "secret-b", RefreshSecret: "refresh", ExpiryHours: 1})

	token, err := issuer.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewJWTService(Config{Secret: "secret", RefreshSecret: "refresh", ExpiryHours: 1})
	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	// Negative expiry issues an already-expired token.
	svc := NewJWTService(Config{Secret: "secret", RefreshSecret: "refresh", ExpiryHours: -1})

	token, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
