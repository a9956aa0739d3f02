package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/repository"
)

type requestRepository struct {
	BaseRepository
}

func NewRequestRepository(base BaseRepository) repository.RequestRepository {
	return &requestRepository{base}
}

const requestColumns = `
	id, requester_id, hospital_id, blood_group, units_needed, urgency,
	hospital_name, hospital_address, latitude, longitude, status, donor_id,
	notes, accepted_at, confirmed_at, completed_at, cancelled_at,
	created_at, updated_at
`

func (r *requestRepository) Create(ctx context.Context, req *model.BloodRequest) error {
	query := `
		INSERT INTO blood_requests (
			id, requester_id, hospital_id, blood_group, units_needed, urgency,
			hospital_name, hospital_address, latitude, longitude, status,
			notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.HospitalID,
		req.BloodGroup,
		req.UnitsNeeded,
		req.Urgency,
		req.HospitalName,
		req.HospitalAddress,
		req.Latitude,
		req.Longitude,
		req.Status,
		req.Notes,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blood request: %w", err)
	}
	return nil
}

func (r *requestRepository) Get(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests WHERE id = $1`

	var req model.BloodRequest
	err := r.db.GetContext(ctx, &req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blood request: %w", err)
	}
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, filters *model.RequestFilters) ([]*model.BloodRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM blood_requests WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.BloodGroup != "" {
			query += fmt.Sprintf(" AND blood_group = $%d", argCount)
			args = append(args, filters.BloodGroup)
			argCount++
		}
		if filters.Urgency != "" {
			query += fmt.Sprintf(" AND urgency = $%d", argCount)
			args = append(args, filters.Urgency)
			argCount++
		}
		if filters.DonorID != uuid.Nil {
			query += fmt.Sprintf(" AND donor_id = $%d", argCount)
			args = append(args, filters.DonorID)
			argCount++
		}
	}

	query += " ORDER BY created_at DESC"

	var requests []*model.BloodRequest
	err := r.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blood requests: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) ListPendingForMatching(ctx context.Context, groups []model.BloodType) ([]*model.BloodRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM blood_requests
		WHERE status = $1
		AND blood_group = ANY($2)
		AND latitude IS NOT NULL
		AND longitude IS NOT NULL
		ORDER BY created_at DESC
	`
	serving := make([]string, len(groups))
	for i, g := range groups {
		serving[i] = string(g)
	}

	var requests []*model.BloodRequest
	err := r.db.SelectContext(ctx, &requests, query, model.RequestStatusPending, pq.Array(serving))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return requests, nil
}

// ClaimPending is the accept-race arbiter: the WHERE status = 'pending'
// guard means exactly one concurrent claim can match the row.
func (r *requestRepository) ClaimPending(ctx context.Context, id, donorID uuid.UUID, acceptedAt time.Time) (bool, error) {
	query := `
		UPDATE blood_requests
		SET status = $1, donor_id = $2, accepted_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		model.RequestStatusAccepted,
		donorID,
		acceptedAt,
		id,
		model.RequestStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim blood request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *requestRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, at time.Time) (bool, error) {
	set := "status = $1, updated_at = $2"
	switch to {
	case model.RequestStatusConfirmed:
		set += ", confirmed_at = $2"
	case model.RequestStatusCompleted:
		set += ", completed_at = $2"
	case model.RequestStatusCancelled:
		set += ", cancelled_at = $2"
	}

	query := fmt.Sprintf(`
		UPDATE blood_requests
		SET %s
		WHERE id = $3 AND status = $4
	`, set)

	result, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition blood request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *requestRepository) DeletePending(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		DELETE FROM blood_requests
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, model.RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to delete blood request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *requestRepository) CountCompletedByDonor(ctx context.Context, donorID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM blood_requests
		WHERE donor_id = $1 AND status = $2
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, donorID, model.RequestStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed donations: %w", err)
	}
	return count, nil
}
