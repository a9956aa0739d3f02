package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestStatus tracks a blood request through its lifecycle. Tokens are
// part of the wire contract, lowercase with underscores.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusOnTheWay  RequestStatus = "on_the_way"
	RequestStatusConfirmed RequestStatus = "confirmed"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// allowedTransitions is the full forward-only transition graph. on_the_way
// and confirmed are alternate intermediates: the donor-driven direct flow
// uses on_the_way, the hospital-mediated flow uses confirmed.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:   {RequestStatusAccepted, RequestStatusCancelled},
	RequestStatusAccepted:  {RequestStatusOnTheWay, RequestStatusConfirmed, RequestStatusCancelled},
	RequestStatusOnTheWay:  {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusConfirmed: {RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusCompleted: {},
	RequestStatusCancelled: {},
}

// CanTransition reports whether from -> to is in the transition graph.
func CanTransition(from, to RequestStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// Valid reports whether s is a known status token.
func (s RequestStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Urgency of a blood request. The system stores and sorts on the two-value
// enum; legacy hospital values are normalized at the boundary.
type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// NormalizeUrgency maps legacy hospital urgency tokens onto the two-value
// enum. Unknown tokens map to normal.
func NormalizeUrgency(raw string) Urgency {
	switch raw {
	case string(UrgencyCritical), "high":
		return UrgencyCritical
	default:
		return UrgencyNormal
	}
}

// rank orders urgencies for matching: critical before normal.
func (u Urgency) rank() int {
	if u == UrgencyCritical {
		return 1
	}
	return 0
}

// MoreUrgentThan reports whether u sorts before other in match results.
func (u Urgency) MoreUrgentThan(other Urgency) bool {
	return u.rank() > other.rank()
}

// BloodRequest is the central entity: a patient's or hospital's call for
// blood of a given group.
//
// Invariants enforced by Validate and the repository:
//   - exactly one of RequesterID / HospitalID is set
//   - DonorID is nil iff the request was never accepted
//   - per-state timestamps are set once, when entering the state
type BloodRequest struct {
	Base
	RequesterID     *uuid.UUID    `db:"requester_id" json:"requester_id,omitempty"`
	HospitalID      *uuid.UUID    `db:"hospital_id" json:"hospital_id,omitempty"`
	BloodGroup      BloodType     `db:"blood_group" json:"blood_group"`
	UnitsNeeded     int           `db:"units_needed" json:"units_needed"`
	Urgency         Urgency       `db:"urgency" json:"urgency"`
	HospitalName    string        `db:"hospital_name" json:"hospital_name,omitempty"`
	HospitalAddress string        `db:"hospital_address" json:"hospital_address,omitempty"`
	Latitude        *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64      `db:"longitude" json:"longitude,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	DonorID         *uuid.UUID    `db:"donor_id" json:"donor_id,omitempty"`
	Notes           string        `db:"notes" json:"notes,omitempty"`
	AcceptedAt      *time.Time    `db:"accepted_at" json:"accepted_at,omitempty"`
	ConfirmedAt     *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt     *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Validate enforces the entity invariants before persistence.
func (r *BloodRequest) Validate() error {
	if (r.RequesterID == nil) == (r.HospitalID == nil) {
		return fmt.Errorf("exactly one of requester_id and hospital_id must be set")
	}
	if !r.BloodGroup.Valid() {
		return fmt.Errorf("invalid blood group %q", r.BloodGroup)
	}
	if r.UnitsNeeded < 1 || r.UnitsNeeded > 10 {
		return fmt.Errorf("units_needed must be between 1 and 10, got %d", r.UnitsNeeded)
	}
	if r.RequesterOriginated() && !r.HasLocation() {
		return fmt.Errorf("location is required for requester-originated requests")
	}
	if r.RequesterOriginated() && (r.HospitalName == "" || r.HospitalAddress == "") {
		return fmt.Errorf("hospital name and address are required for requester-originated requests")
	}
	return nil
}

// RequesterOriginated reports whether a patient (rather than a hospital)
// created the request.
func (r *BloodRequest) RequesterOriginated() bool {
	return r.RequesterID != nil
}

// HasLocation reports whether the request carries coordinates for
// proximity matching.
func (r *BloodRequest) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Location returns the request coordinates. Only valid when HasLocation.
func (r *BloodRequest) Location() GeoPoint {
	return GeoPoint{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// CreateRequestInput is a patient-originated request body. Location and
// hospital display fields are required since donors are matched by
// proximity to the treating hospital.
type CreateRequestInput struct {
	BloodGroup      string   `json:"blood_group" binding:"required,bloodgroup"`
	UnitsNeeded     int      `json:"units_needed" binding:"required,min=1,max=10"`
	Urgency         string   `json:"urgency" binding:"omitempty,oneof=normal critical"`
	HospitalName    string   `json:"hospital_name" binding:"required"`
	HospitalAddress string   `json:"hospital_address" binding:"required"`
	Latitude        *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude       *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	Notes           string   `json:"notes" binding:"max=1000"`
}

// CreateHospitalRequestInput is a hospital-originated request body. The
// hospital's own identity is implied, so display fields and coordinates are
// optional; legacy urgency tokens are accepted and normalized.
type CreateHospitalRequestInput struct {
	BloodGroup      string   `json:"blood_group" binding:"required,bloodgroup"`
	UnitsNeeded     int      `json:"units_needed" binding:"required,min=1,max=10"`
	Urgency         string   `json:"urgency" binding:"omitempty,oneof=normal critical low medium high"`
	HospitalName    string   `json:"hospital_name"`
	HospitalAddress string   `json:"hospital_address"`
	Latitude        *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude       *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
	Notes           string   `json:"notes" binding:"max=1000"`
}

// RequestFilters narrows request listings.
type RequestFilters struct {
	Status     RequestStatus `form:"status"`
	BloodGroup BloodType     `form:"blood_group"`
	Urgency    Urgency       `form:"urgency"`
	DonorID    uuid.UUID     `form:"donor_id"`
}

// ContactBundle is the denormalized contact sheet returned to a donor on a
// successful accept so they can reach the requester immediately.
type ContactBundle struct {
	HospitalName    string `json:"hospital_name"`
	HospitalAddress string `json:"hospital_address"`
	RequesterName   string `json:"requester_name,omitempty"`
	RequesterPhone  string `json:"requester_phone,omitempty"`
}

// MatchedRequest is a pending request annotated with the distance from the
// searching donor, rounded to one decimal km for display.
type MatchedRequest struct {
	*BloodRequest
	DistanceKm float64 `json:"distance_km"`
}
