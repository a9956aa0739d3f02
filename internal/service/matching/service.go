package matching

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bloodlink/bloodlink-api/internal/geo"
	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository"
	"github.com/bloodlink/bloodlink-api/internal/service/event"
	apperrors "github.com/bloodlink/bloodlink-api/pkg/errors"
	"github.com/bloodlink/bloodlink-api/pkg/metrics"
)

// DefaultRadiusKm bounds a donor's request search when none is given.
const DefaultRadiusKm = 50.0

// AcceptResult is returned to the winning donor: the claimed request plus
// the contact sheet they need right away.
type AcceptResult struct {
	Request *model.BloodRequest `json:"request"`
	Contact model.ContactBundle `json:"contact"`
}

// Service routes pending requests to eligible donors and arbitrates the
// claim. Eligibility is availability plus blood-group compatibility;
// routing is great-circle proximity.
type Service struct {
	requestRepo   repository.RequestRepository
	userRepo      repository.UserRepository
	events        *event.Service
	metrics       *metrics.Metrics
	defaultRadius float64
}

func NewService(requestRepo repository.RequestRepository, userRepo repository.UserRepository, events *event.Service, m *metrics.Metrics, defaultRadiusKm float64) *Service {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultRadiusKm
	}
	return &Service{
		requestRepo:   requestRepo,
		userRepo:      userRepo,
		events:        events,
		metrics:       m,
		defaultRadius: defaultRadiusKm,
	}
}

// NearbyRequests returns the pending requests the donor could fulfil,
// within radiusKm of their coordinates, ordered by urgency (critical
// first), then distance, then recency.
func (s *Service) NearbyRequests(ctx context.Context, donorID uuid.UUID, radiusKm float64) ([]*model.MatchedRequest, error) {
	donor, err := s.userRepo.Get(ctx, donorID)
	if err != nil {
		return nil, apperrors.NotFound("donor", err)
	}
	if !donor.HasLocation() {
		return nil, apperrors.Validation("donor has no registered location", nil)
	}
	if radiusKm <= 0 {
		radiusKm = s.defaultRadius
	}

	candidates, err := s.requestRepo.ListPendingForMatching(ctx, model.CompatibleRecipients(donor.BloodGroup))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	return FilterAndSort(donor, radiusKm, candidates), nil
}

// FilterAndSort applies the proximity filter and the match ordering to a
// candidate set. Exposed for the donor profile view, which reuses the same
// ordering.
func FilterAndSort(donor *model.User, radiusKm float64, candidates []*model.BloodRequest) []*model.MatchedRequest {
	matches := make([]*model.MatchedRequest, 0, len(candidates))
	for _, req := range candidates {
		if req.Status != model.RequestStatusPending || !req.HasLocation() {
			continue
		}
		// Never route a donor to their own request.
		if req.RequesterID != nil && *req.RequesterID == donor.ID {
			continue
		}
		d := geo.DistanceKm(*donor.Latitude, *donor.Longitude, *req.Latitude, *req.Longitude)
		if d > radiusKm {
			continue
		}
		matches = append(matches, &model.MatchedRequest{
			BloodRequest: req,
			DistanceKm:   geo.RoundKm(d),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Urgency != b.Urgency {
			return a.Urgency.MoreUrgentThan(b.Urgency)
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return matches
}

// AcceptRequest is the atomic claim. Preconditions are checked in order,
// each with its own error, then the claim itself is a conditional update:
// whichever concurrent caller lands first wins and every loser gets
// RequestUnavailable.
func (s *Service) AcceptRequest(ctx context.Context, donorID, requestID uuid.UUID) (*AcceptResult, error) {
	req, err := s.requestRepo.Get(ctx, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if req.Status != model.RequestStatusPending {
		return nil, apperrors.RequestUnavailable()
	}
	if req.RequesterID != nil && *req.RequesterID == donorID {
		return nil, apperrors.Forbidden("donors cannot accept their own request")
	}

	donor, err := s.userRepo.Get(ctx, donorID)
	if err != nil {
		return nil, apperrors.NotFound("donor", err)
	}
	if !donor.Availability {
		return nil, apperrors.DonorUnavailable()
	}
	if !model.IsCompatible(donor.BloodGroup, req.BloodGroup) {
		return nil, apperrors.IncompatibleBloodType(string(donor.BloodGroup), string(req.BloodGroup))
	}

	claimed, err := s.requestRepo.ClaimPending(ctx, requestID, donorID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim request: %w", err)
	}
	if !claimed {
		s.metrics.AcceptRaceLost.Inc()
		return nil, apperrors.RequestUnavailable()
	}
	s.metrics.RequestsAccepted.Inc()

	updated, err := s.requestRepo.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload request: %w", err)
	}

	contact, err := s.contactBundle(ctx, updated)
	if err != nil {
		return nil, err
	}

	s.events.EmitAsync(ctx, model.EventRequestAccepted, updated)

	return &AcceptResult{Request: updated, Contact: contact}, nil
}

func (s *Service) contactBundle(ctx context.Context, req *model.BloodRequest) (model.ContactBundle, error) {
	bundle := model.ContactBundle{
		HospitalName:    req.HospitalName,
		HospitalAddress: req.HospitalAddress,
	}
	if req.RequesterID == nil {
		return bundle, nil
	}

	requester, err := s.userRepo.Get(ctx, *req.RequesterID)
	if err != nil {
		return bundle, fmt.Errorf("failed to get requester: %w", err)
	}
	bundle.RequesterName = requester.Name
	if requester.Phone != nil {
		bundle.RequesterPhone = *requester.Phone
	}
	return bundle, nil
}
