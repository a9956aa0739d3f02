package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository"
	"github.com/bloodlink/bloodlink-api/internal/service/event"
	apperrors "github.com/bloodlink/bloodlink-api/pkg/errors"
)

// Service owns the blood request lifecycle: creation, the role-gated
// status state machine, and withdrawal. The direct donor flow
// (accepted -> on_the_way -> completed) and the hospital-mediated flow
// (accepted -> confirmed -> completed) are sub-cases of one transition
// table.
type Service struct {
	repo     repository.RequestRepository
	userRepo repository.UserRepository
	events   *event.Service
}

func NewService(repo repository.RequestRepository, userRepo repository.UserRepository, events *event.Service) *Service {
	return &Service{
		repo:     repo,
		userRepo: userRepo,
		events:   events,
	}
}

// CreateRequest creates a patient-originated request in the pending state.
func (s *Service) CreateRequest(ctx context.Context, requesterID uuid.UUID, input *model.CreateRequestInput) (*model.BloodRequest, error) {
	req := &model.BloodRequest{
		RequesterID:     &requesterID,
		BloodGroup:      model.BloodType(input.BloodGroup),
		UnitsNeeded:     input.UnitsNeeded,
		Urgency:         model.NormalizeUrgency(input.Urgency),
		HospitalName:    input.HospitalName,
		HospitalAddress: input.HospitalAddress,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Notes:           input.Notes,
		Status:          model.RequestStatusPending,
	}
	return s.create(ctx, req)
}

// CreateHospitalRequest creates a hospital-originated request. Legacy
// urgency tokens are normalized onto the two-value enum here, at the
// boundary.
func (s *Service) CreateHospitalRequest(ctx context.Context, hospitalID uuid.UUID, input *model.CreateHospitalRequestInput) (*model.BloodRequest, error) {
	req := &model.BloodRequest{
		HospitalID:      &hospitalID,
		BloodGroup:      model.BloodType(input.BloodGroup),
		UnitsNeeded:     input.UnitsNeeded,
		Urgency:         model.NormalizeUrgency(input.Urgency),
		HospitalName:    input.HospitalName,
		HospitalAddress: input.HospitalAddress,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Notes:           input.Notes,
		Status:          model.RequestStatusPending,
	}
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req *model.BloodRequest) (*model.BloodRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.events.EmitAsync(ctx, model.EventRequestCreated, req)
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	req, err := s.repo.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (s *Service) ListRequests(ctx context.Context, filters *model.RequestFilters) ([]*model.BloodRequest, error) {
	requests, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// MarkOnTheWay is the matched donor signalling they are travelling to the
// hospital. Direct flow only.
func (s *Service) MarkOnTheWay(ctx context.Context, actor model.TokenClaims, id uuid.UUID) (*model.BloodRequest, error) {
	return s.transition(ctx, actor, id, model.RequestStatusOnTheWay)
}

// Confirm is the hospital acknowledging the accepted donor. Mediated flow
// only.
func (s *Service) Confirm(ctx context.Context, actor model.TokenClaims, id uuid.UUID) (*model.BloodRequest, error) {
	return s.transition(ctx, actor, id, model.RequestStatusConfirmed)
}

// Complete closes out the donation. Entering completed also credits the
// donor: last_donation_date and total_donations move in the same call.
func (s *Service) Complete(ctx context.Context, actor model.TokenClaims, id uuid.UUID) (*model.BloodRequest, error) {
	return s.transition(ctx, actor, id, model.RequestStatusCompleted)
}

// Cancel aborts the request from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, actor model.TokenClaims, id uuid.UUID) (*model.BloodRequest, error) {
	return s.transition(ctx, actor, id, model.RequestStatusCancelled)
}

// transition validates the requested edge against the current state and
// the actor's role, then applies it with a conditional update so a
// concurrent transition can never be silently overwritten.
func (s *Service) transition(ctx context.Context, actor model.TokenClaims, id uuid.UUID, to model.RequestStatus) (*model.BloodRequest, error) {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(req.Status, to) {
		return nil, apperrors.InvalidTransition(string(req.Status), string(to))
	}
	if err := authorizeTransition(actor, req, to); err != nil {
		return nil, err
	}

	now := time.Now()
	ok, err := s.repo.TransitionStatus(ctx, id, req.Status, to, now)
	if err != nil {
		return nil, fmt.Errorf("failed to transition request: %w", err)
	}
	if !ok {
		// Lost a race with a concurrent transition. Re-fetch so the error
		// names the state the request actually reached.
		fresh, ferr := s.GetRequest(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, apperrors.InvalidTransition(string(fresh.Status), string(to))
	}

	if to == model.RequestStatusCompleted && req.DonorID != nil {
		if err := s.userRepo.RecordDonation(ctx, *req.DonorID, now); err != nil {
			return nil, fmt.Errorf("failed to record donation: %w", err)
		}
	}

	updated, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	s.events.EmitAsync(ctx, eventTypeFor(to), updated)
	return updated, nil
}

// Withdraw deletes a request before any donor engagement. Only the owner
// may withdraw, and only while the request is still pending.
func (s *Service) Withdraw(ctx context.Context, actor model.TokenClaims, id uuid.UUID) error {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if !isOwner(actor, req) && actor.Role != model.UserRoleAdmin {
		return apperrors.Forbidden("only the requester may withdraw a request")
	}

	ok, err := s.repo.DeletePending(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to withdraw request: %w", err)
	}
	if !ok {
		return apperrors.InvalidTransition(string(req.Status), "withdrawn")
	}
	return nil
}

// authorizeTransition is transition-specific: the actor role decides which
// edges they may drive.
func authorizeTransition(actor model.TokenClaims, req *model.BloodRequest, to model.RequestStatus) error {
	switch to {
	case model.RequestStatusOnTheWay:
		if req.DonorID == nil || *req.DonorID != actor.UserID {
			return apperrors.Forbidden("only the matched donor may mark a request on the way")
		}
	case model.RequestStatusConfirmed:
		if actor.Role != model.UserRoleHospital && actor.Role != model.UserRoleAdmin {
			return apperrors.Forbidden("only a hospital may confirm a request")
		}
	case model.RequestStatusCompleted:
		if !isOwner(actor, req) && actor.Role != model.UserRoleHospital && actor.Role != model.UserRoleAdmin {
			return apperrors.Forbidden("only the requester or hospital may complete a request")
		}
	case model.RequestStatusCancelled:
		if !isOwner(actor, req) && actor.Role != model.UserRoleAdmin {
			return apperrors.Forbidden("only the requester or an admin may cancel a request")
		}
	}
	return nil
}

func isOwner(actor model.TokenClaims, req *model.BloodRequest) bool {
	if req.RequesterID != nil && *req.RequesterID == actor.UserID {
		return true
	}
	if req.HospitalID != nil && *req.HospitalID == actor.UserID {
		return true
	}
	return false
}

func eventTypeFor(status model.RequestStatus) string {
	switch status {
	case model.RequestStatusAccepted:
		return model.EventRequestAccepted
	case model.RequestStatusOnTheWay:
		return model.EventRequestOnTheWay
	case model.RequestStatusConfirmed:
		return model.EventRequestConfirmed
	case model.RequestStatusCompleted:
		return model.EventRequestCompleted
	case model.RequestStatusCancelled:
		return model.EventRequestCancelled
	default:
		return model.EventRequestCreated
	}
}
