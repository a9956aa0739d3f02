package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository"
	"github.com/bloodlink/bloodlink-api/pkg/auth"
	apperrors "github.com/bloodlink/bloodlink-api/pkg/errors"
	"github.com/bloodlink/bloodlink-api/pkg/security"
)

// Service handles registration and login. Authentication stops here: core
// services only ever see the verified actor identity.
type Service struct {
	repo   repository.UserRepository
	hasher security.PasswordHasher
	tokens auth.JWTService
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, tokens auth.JWTService) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterUserRequest) (*model.User, error) {
	if !model.BloodType(req.BloodGroup).Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid blood group %q", req.BloodGroup), nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Validation("invalid password", err)
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       model.UserStatusActive,
		BloodGroup:   model.BloodType(req.BloodGroup),
		Availability: req.Role == model.UserRoleDonor,
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenPair, *model.User, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, nil, apperrors.Unauthorized("invalid credentials")
	}

	access, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, user, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The user
// record is reloaded so a role change or deactivation takes effect here.
func (s *Service) Refresh(ctx context.Context, req *model.RefreshRequest) (*model.TokenPair, *model.User, error) {
	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.repo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid refresh token")
	}
	if user.Status != model.UserStatusActive {
		return nil, nil, apperrors.Unauthorized("account is not active")
	}

	access, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}
	return user, nil
}
