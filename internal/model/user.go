package model

import (
	"time"

	"github.com/google/uuid"
)

// User role constants
const (
	UserRoleDonor     = "donor"
	UserRoleRequester = "requester"
	UserRoleHospital  = "hospital"
	UserRoleAdmin     = "admin"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User represents any actor in the system. A user with Availability=true
// and a registered blood group is a matchable donor.
type User struct {
	Base
	Email            string     `json:"email" db:"email"`
	Name             string     `json:"name" db:"name"`
	Phone            *string    `json:"phone" db:"phone"`
	Password         string     `json:"password,omitempty" db:"-"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	Role             string     `json:"role" db:"role"`
	Status           string     `json:"status" db:"status"`
	BloodGroup       BloodType  `json:"blood_group" db:"blood_group"`
	Availability     bool       `json:"availability" db:"availability"`
	Latitude         *float64   `json:"latitude" db:"latitude"`
	Longitude        *float64   `json:"longitude" db:"longitude"`
	LastDonationDate *time.Time `json:"last_donation_date" db:"last_donation_date"`
	TotalDonations   int        `json:"total_donations" db:"total_donations"`
	Badges           JSONMap    `json:"badges" db:"badges"`
}

// HasLocation reports whether the user shared coordinates for proximity
// matching.
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// RegisterUserRequest represents registration parameters
type RegisterUserRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone"`
	Password   string `json:"password" binding:"required,min=8"`
	Role       string `json:"role" binding:"required,oneof=donor requester hospital"`
	BloodGroup string `json:"blood_group" binding:"required,bloodgroup"`
}

// LoginRequest represents login parameters
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest exchanges a refresh token for a fresh token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateAvailabilityRequest toggles a donor in or out of matching
type UpdateAvailabilityRequest struct {
	Availability *bool `json:"availability" binding:"required"`
}

// UpdateLocationRequest updates a donor's current coordinates
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" binding:"required,min=-180,max=180"`
}

// TokenClaims carries the verified actor identity extracted from a JWT
type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

// TokenPair is returned on successful login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
