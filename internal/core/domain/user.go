package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of identity kinds. It never changes after registration.
type Role string

const (
	RoleClient   Role = "client"
	RoleMerchant Role = "merchant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleMerchant:
		return true
	}
	return false
}

// ParseRole converts user input to a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User is a registered identity. PasswordHash is opaque to the ledger core.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the acting identity derived from this user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

// Identity is the authenticated caller as seen by the ledger core.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

func (i Identity) IsClient() bool   { return i.Role == RoleClient }
func (i Identity) IsMerchant() bool { return i.Role == RoleMerchant }

// NormalizeEmail lower-cases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
