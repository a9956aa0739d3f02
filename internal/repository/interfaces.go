package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bloodlink/bloodlink-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles donor/requester/hospital user records
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdateAvailability(ctx context.Context, id uuid.UUID, available bool) error
		UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
		// RecordDonation increments total_donations and stamps
		// last_donation_date when a request completes.
		RecordDonation(ctx context.Context, id uuid.UUID, donatedAt time.Time) error
	}

	// RequestRepository handles blood request records. All status-changing
	// writes are conditional on the expected current status so concurrent
	// transitions can never produce a partial or inconsistent state.
	RequestRepository interface {
		Create(ctx context.Context, req *model.BloodRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error)
		List(ctx context.Context, filters *model.RequestFilters) ([]*model.BloodRequest, error)
		// ListPendingForMatching returns every pending request with
		// coordinates whose blood group is in groups. Proximity filtering
		// and ordering happen service-side.
		ListPendingForMatching(ctx context.Context, groups []model.BloodType) ([]*model.BloodRequest, error)
		// ClaimPending atomically moves a pending request to accepted and
		// records the winning donor. Returns false when the request was no
		// longer pending at write time (the accept-race loser).
		ClaimPending(ctx context.Context, id, donorID uuid.UUID, acceptedAt time.Time) (bool, error)
		// TransitionStatus atomically moves id from -> to, stamping the
		// state's timestamp column. Returns false when the current status
		// no longer equals from.
		TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error)
		// DeletePending withdraws a request, conditional on it still being
		// pending. Returns false when the request already advanced.
		DeletePending(ctx context.Context, id uuid.UUID) (bool, error)
		CountCompletedByDonor(ctx context.Context, donorID uuid.UUID) (int, error)
	}

	// OutboxRepository stores lifecycle events for the relay worker
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock returns publishable events: pending ones
		// plus failed ones that have not yet used up maxRetries attempts.
		GetPendingEventsWithLock(ctx context.Context, limit, maxRetries int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
	}
)
