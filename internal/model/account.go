// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the fixed role of a profile. It is chosen at registration and never
// changes afterwards.
type Role string

const (
	RoleDonor Role = "donor"
	RoleNGO   Role = "ngo"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDonor || r == RoleNGO
}

// Label is the display name used in templates and messages.
func (r Role) Label() string {
	switch r {
	case RoleDonor:
		return "Donor"
	case RoleNGO:
		return "NGO"
	}
	return string(r)
}

// Account is the identity and credential record.
//
// GitHubID is nil until the account is linked to a GitHub login. Admin
// accounts are created from the admin CLI and have no Profile.
type Account struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     *int64    `json:"githubId"  db:"github_id"`
	IsAdmin      bool      `json:"isAdmin"   db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Profile holds the marketplace attributes of a non-admin account.
// AverageRating is derived from received reviews and rewritten whenever a
// new review arrives.
type Profile struct {
	AccountID     string  `json:"accountId"     db:"account_id"`
	Role          Role    `json:"role"          db:"role"`
	IsApproved    bool    `json:"isApproved"    db:"is_approved"`
	PhoneNumber   string  `json:"phoneNumber"   db:"phone_number"`
	AverageRating float64 `json:"averageRating" db:"average_rating"`
}

// ProfileRow joins a profile with its account for listings.
type ProfileRow struct {
	Account
	Profile
}

// Viewer is the resolved identity of the caller of a gated operation.
// Handlers receive it as an explicit parameter.
type Viewer struct {
	Account Account
	Profile Profile
}

func (v *Viewer) ID() string {
	return v.Account.ID
}

func (v *Viewer) Role() Role {
	return v.Profile.Role
}
