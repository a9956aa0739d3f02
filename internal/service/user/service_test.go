package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository/repotest"
	"github.com/bloodlink/bloodlink-api/pkg/auth"
	apperrors "github.com/bloodlink/bloodlink-api/pkg/errors"
	"github.com/bloodlink/bloodlink-api/pkg/security"
)

func newService() (*Service, *repotest.UserRepo) {
	repo := repotest.NewUserRepo()
	tokens := auth.NewJWTService(auth.Config{
		Secret:        "test-secret",
		RefreshSecret: "test-refresh-secret",
		ExpiryHours:   1,
	})
	// MinCost keeps the hashing fast in tests.
	return NewService(repo, security.NewBcryptHasher(4), tokens), repo
}

func registerInput() *model.RegisterUserRequest {
	return &model.RegisterUserRequest{
		Email:      "donor@example.com",
		Name:       "Test Donor",
		Phone:      "+15550100",
		Password:   "s3cret-password",
		Role:       model.UserRoleDonor,
		BloodGroup: "O-",
	}
}

func TestRegisterDonor(t *testing.T) {
	svc, _ := newService()

	user, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, model.BloodTypeONeg, user.BloodGroup)
	assert.Equal(t, model.UserStatusActive, user.Status)
	assert.True(t, user.Availability, "donors start available")
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "s3cret-password", user.PasswordHash)
}

func TestRegisterRequesterNotAvailable(t *testing.T) {
	svc, _ := newService()

	input := registerInput()
	input.Role = model.UserRoleRequester
	user, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, user.Availability)
}

func TestRegisterInvalidBloodGroup(t *testing.T) {
	svc, _ := newService()

	input := registerInput()
	input.BloodGroup = "Q+"
	_, err := svc.Register(context.Background(), input)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestLogin(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	pair, user, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "donor@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "donor@example.com", user.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), &model.LoginRequest{
		Email:    "donor@example.com",
		Password: "wrong-password",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newService()

	_, _, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginTokenRoundTrip(t *testing.T) {
	svc, _ := newService()
	registered, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	tokens := auth.NewJWTService(auth.Config{
		Secret:        "test-secret",
		RefreshSecret: "test-refresh-secret",
		ExpiryHours:   1,
	})
	pair, _, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "donor@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.Equal(t, model.UserRoleDonor, claims.Role)
}

func TestRefresh(t *testing.T) {
	svc, _ := newService()
	registered, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	pair, _, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "donor@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	fresh, user, err := svc.Refresh(context.Background(), &model.RefreshRequest{
		RefreshToken: pair.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)
	assert.NotEmpty(t, fresh.RefreshToken)
	assert.Equal(t, registered.ID, user.ID)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	pair, _, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "donor@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), &model.RefreshRequest{
		RefreshToken: pair.AccessToken,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	svc, repo := newService()
	registered, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	pair, _, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "donor@example.com",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	registered.Status = model.UserStatusInactive
	require.NoError(t, repo.Update(context.Background(), registered))

	_, _, err = svc.Refresh(context.Background(), &model.RefreshRequest{
		RefreshToken: pair.RefreshToken,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestGetUserNotFound(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
