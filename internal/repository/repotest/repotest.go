// Package repotest provides in-memory repository implementations for
// service-level tests. They mirror the conditional-update semantics of the
// postgres layer, including the claim and transition races.
package repotest

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bloodlink/bloodlink-api/internal/model"
)

// UserRepo is an in-memory UserRepository.
type UserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *UserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *UserRepo) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *UserRepo) UpdateAvailability(_ context.Context, id uuid.UUID, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Availability = available
	return nil
}

func (r *UserRepo) UpdateLocation(_ context.Context, id uuid.UUID, lat, lng float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Latitude = &lat
	u.Longitude = &lng
	return nil
}

func (r *UserRepo) RecordDonation(_ context.Context, id uuid.UUID, donatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.TotalDonations++
	u.LastDonationDate = &donatedAt
	return nil
}

// RequestRepo is an in-memory RequestRepository.
type RequestRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.BloodRequest
}

func NewRequestRepo() *RequestRepo {
	return &RequestRepo{requests: make(map[uuid.UUID]*model.BloodRequest)}
}

// Seed inserts a request without touching timestamps, for fixtures.
func (r *RequestRepo) Seed(req *model.BloodRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	r.requests[req.ID] = req
}

func (r *RequestRepo) Create(_ context.Context, req *model.BloodRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	r.requests[req.ID] = req
	return nil
}

func (r *RequestRepo) Get(_ context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *req
	return &cp, nil
}

func (r *RequestRepo) List(_ context.Context, filters *model.RequestFilters) ([]*model.BloodRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.BloodRequest
	for _, req := range r.requests {
		if filters != nil {
			if filters.Status != "" && req.Status != filters.Status {
				continue
			}
			if filters.BloodGroup != "" && req.BloodGroup != filters.BloodGroup {
				continue
			}
			if filters.Urgency != "" && req.Urgency != filters.Urgency {
				continue
			}
			if filters.DonorID != uuid.Nil && (req.DonorID == nil || *req.DonorID != filters.DonorID) {
				continue
			}
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, nil
}

func (r *RequestRepo) ListPendingForMatching(_ context.Context, groups []model.BloodType) ([]*model.BloodRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	groupSet := make(map[model.BloodType]bool, len(groups))
	for _, g := range groups {
		groupSet[g] = true
	}
	var out []*model.BloodRequest
	for _, req := range r.requests {
		if req.Status != model.RequestStatusPending || !req.HasLocation() || !groupSet[req.BloodGroup] {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	return out, nil
}

func (r *RequestRepo) ClaimPending(_ context.Context, id, donorID uuid.UUID, acceptedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != model.RequestStatusPending {
		return false, nil
	}
	req.Status = model.RequestStatusAccepted
	req.DonorID = &donorID
	req.AcceptedAt = &acceptedAt
	req.UpdatedAt = acceptedAt
	return true, nil
}

func (r *RequestRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	req.UpdatedAt = at
	switch to {
	case model.RequestStatusConfirmed:
		req.ConfirmedAt = &at
	case model.RequestStatusCompleted:
		req.CompletedAt = &at
	case model.RequestStatusCancelled:
		req.CancelledAt = &at
	}
	return true, nil
}

func (r *RequestRepo) DeletePending(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != model.RequestStatusPending {
		return false, nil
	}
	delete(r.requests, id)
	return true, nil
}

func (r *RequestRepo) CountCompletedByDonor(_ context.Context, donorID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, req := range r.requests {
		if req.Status == model.RequestStatusCompleted && req.DonorID != nil && *req.DonorID == donorID {
			count++
		}
	}
	return count, nil
}

// OutboxRepo is an in-memory OutboxRepository that records emitted events.
type OutboxRepo struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

func (r *OutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	r.events = append(r.events, event)
	return nil
}

func (r *OutboxRepo) GetPendingEventsWithLock(_ context.Context, limit, maxRetries int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.events {
		retryable := e.Status == model.OutboxStatusFailed && e.RetryCount < maxRetries
		if e.Status != model.OutboxStatusPending && !retryable {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errorMessage
			if status == model.OutboxStatusFailed {
				e.RetryCount++
			}
			if status == model.OutboxStatusProcessed {
				now := time.Now()
				e.ProcessedAt = &now
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *OutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var removed int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return removed, nil
}

func (r *OutboxRepo) BeginTx(context.Context) (*sql.Tx, error) {
	return nil, nil
}

// EventTypes returns the types of all recorded events in emit order.
func (r *OutboxRepo) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType
	}
	return types
}
