package donor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository"
	apperrors "github.com/bloodlink/bloodlink-api/pkg/errors"
)

const (
	statsCacheTTL     = time.Minute
	statsCacheCleanup = 5 * time.Minute
)

// Stats is a donor's donation history summary. Badges are recomputed from
// the completed count on every read; nothing here is authoritative state.
type Stats struct {
	TotalDonations   int           `json:"total_donations"`
	LastDonationDate *time.Time    `json:"last_donation_date,omitempty"`
	Badges           []model.Badge `json:"badges"`
}

// Profile bundles the donor record with derived stats.
type Profile struct {
	User  *model.User `json:"user"`
	Stats *Stats      `json:"stats"`
}

// Service manages donor-side state: availability, location, and derived
// donation stats.
type Service struct {
	userRepo    repository.UserRepository
	requestRepo repository.RequestRepository
	statsCache  *gocache.Cache
}

func NewService(userRepo repository.UserRepository, requestRepo repository.RequestRepository) *Service {
	return &Service{
		userRepo:    userRepo,
		requestRepo: requestRepo,
		statsCache:  gocache.New(statsCacheTTL, statsCacheCleanup),
	}
}

func (s *Service) GetProfile(ctx context.Context, donorID uuid.UUID) (*Profile, error) {
	user, err := s.userRepo.Get(ctx, donorID)
	if err != nil {
		return nil, apperrors.NotFound("donor", err)
	}

	stats, err := s.GetStats(ctx, donorID)
	if err != nil {
		return nil, err
	}
	stats.LastDonationDate = user.LastDonationDate

	return &Profile{User: user, Stats: stats}, nil
}

// GetStats derives the donation summary from completed-request history.
// Counts are cached briefly; recomputation is idempotent so a stale or
// concurrent read is harmless. The cache holds Stats by value and every
// caller gets its own copy, so callers may annotate the result freely.
func (s *Service) GetStats(ctx context.Context, donorID uuid.UUID) (*Stats, error) {
	if cached, ok := s.statsCache.Get(donorID.String()); ok {
		stats := cached.(Stats)
		return &stats, nil
	}

	completed, err := s.requestRepo.CountCompletedByDonor(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed donations: %w", err)
	}

	stats := Stats{
		TotalDonations: completed,
		Badges:         model.ComputeBadges(completed),
	}
	s.statsCache.Set(donorID.String(), stats, gocache.DefaultExpiration)

	cp := stats
	return &cp, nil
}

// SetAvailability toggles the donor in or out of matching.
func (s *Service) SetAvailability(ctx context.Context, donorID uuid.UUID, available bool) error {
	if err := s.userRepo.UpdateAvailability(ctx, donorID, available); err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	return nil
}

// UpdateLocation records the donor's current coordinates for proximity
// matching.
func (s *Service) UpdateLocation(ctx context.Context, donorID uuid.UUID, lat, lng float64) error {
	if err := s.userRepo.UpdateLocation(ctx, donorID, lat, lng); err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	return nil
}

// InvalidateStats drops the cached summary, forcing the next read to
// recount. Called after a completion touches the donor's history.
func (s *Service) InvalidateStats(donorID uuid.UUID) {
	s.statsCache.Delete(donorID.String())
}
