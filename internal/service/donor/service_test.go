package donor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository/repotest"
	apperrors "github.com/bloodlink/bloodlink-api/pkg/errors"
)

func newFixture(t *testing.T) (*Service, *repotest.UserRepo, *repotest.RequestRepo, *model.User) {
	t.Helper()
	users := repotest.NewUserRepo()
	requests := repotest.NewRequestRepo()
	donor := &model.User{
		Email:        "donor@example.com",
		Name:         "Test Donor",
		Role:         model.UserRoleDonor,
		BloodGroup:   model.BloodTypeONeg,
		Availability: true,
	}
	require.NoError(t, users.Create(context.Background(), donor))
	return NewService(users, requests), users, requests, donor
}

func seedCompleted(requests *repotest.RequestRepo, donorID uuid.UUID, n int) {
	requesterID := uuid.New()
	for i := 0; i < n; i++ {
		id := donorID
		requests.Seed(&model.BloodRequest{
			RequesterID: &requesterID,
			BloodGroup:  model.BloodTypeAPos,
			UnitsNeeded: 1,
			Urgency:     model.UrgencyNormal,
			Status:      model.RequestStatusCompleted,
			DonorID:     &id,
		})
	}
}

func TestGetStats(t *testing.T) {
	svc, _, requests, donor := newFixture(t)
	seedCompleted(requests, donor.ID, 5)

	stats, err := svc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalDonations)
	var earned []string
	for _, b := range stats.Badges {
		if b.Earned {
			earned = append(earned, b.Name)
		}
	}
	assert.Equal(t, []string{"First Donation", "Life Saver", "Hero Donor"}, earned)
}

func TestGetStatsCachesCount(t *testing.T) {
	svc, _, requests, donor := newFixture(t)
	seedCompleted(requests, donor.ID, 1)

	stats, err := svc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDonations)

	// A new completion is not visible until the cache entry expires or is
	// invalidated.
	seedCompleted(requests, donor.ID, 1)
	stats, err = svc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDonations)

	svc.InvalidateStats(donor.ID)
	stats, err = svc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDonations)
}

func TestGetProfile(t *testing.T) {
	svc, users, requests, donor := newFixture(t)
	seedCompleted(requests, donor.ID, 3)
	donatedAt := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, users.RecordDonation(context.Background(), donor.ID, donatedAt))

	profile, err := svc.GetProfile(context.Background(), donor.ID)
	require.NoError(t, err)

	assert.Equal(t, donor.ID, profile.User.ID)
	assert.Equal(t, 3, profile.Stats.TotalDonations)
	require.NotNil(t, profile.Stats.LastDonationDate)
	assert.True(t, profile.Stats.LastDonationDate.Equal(donatedAt))
}

func TestGetStatsReturnsIndependentCopies(t *testing.T) {
	svc, _, requests, donor := newFixture(t)
	seedCompleted(requests, donor.ID, 2)

	first, err := svc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)

	// Annotating one result must not leak into later cached reads.
	stamp := time.Now()
	first.LastDonationDate = &stamp
	first.TotalDonations = 99

	second, err := svc.GetStats(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalDonations)
	assert.Nil(t, second.LastDonationDate)
}

func TestGetProfileConcurrent(t *testing.T) {
	svc, users, requests, donor := newFixture(t)
	seedCompleted(requests, donor.ID, 3)
	donatedAt := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, users.RecordDonation(context.Background(), donor.ID, donatedAt))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			profile, err := svc.GetProfile(context.Background(), donor.ID)
			assert.NoError(t, err)
			assert.Equal(t, 3, profile.Stats.TotalDonations)
		}()
	}
	wg.Wait()
}

func TestGetProfileNotFound(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	_, err := svc.GetProfile(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestSetAvailability(t *testing.T) {
	svc, users, _, donor := newFixture(t)

	require.NoError(t, svc.SetAvailability(context.Background(), donor.ID, false))
	updated, err := users.Get(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.False(t, updated.Availability)
}

func TestUpdateLocation(t *testing.T) {
	svc, users, _, donor := newFixture(t)

	require.NoError(t, svc.UpdateLocation(context.Background(), donor.ID, 40.7128, -74.0060))
	updated, err := users.Get(context.Background(), donor.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Latitude)
	assert.Equal(t, 40.7128, *updated.Latitude)
	assert.Equal(t, -74.0060, *updated.Longitude)
}
