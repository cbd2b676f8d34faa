// Package models defines the participant aggregate: a base Identity shared by
// every participant plus a role-specific Profile owned by exactly one
// Identity. The pair is one consistency unit; only the participant service
// mutates it.
package models

import (
	"strings"
	"time"

	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
)

// Role tags an identity as one of the two participant kinds.
type Role string

const (
	RoleSubject   Role = "subject"
	RoleCaregiver Role = "caregiver"
)

// ParseRole constructs a Role from external input.
// Errors: CodeInvalidInput for anything but the two supported roles.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSubject, RoleCaregiver:
		return Role(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "role must be subject or caregiver")
}

// Identity is the base record common to every participant.
//
// Invariants:
//   - NationalID, Login, and Email (when present) are each globally unique;
//     uniqueness is enforced by the identity stores, shape here
//   - Login has at least 3 characters
//   - Role never changes after registration
//   - An Identity is only reachable through its Profile; one without a
//     matching Profile is an orphan awaiting repair and reads as not found
type Identity struct {
	ID             id.ParticipantID `json:"id"`
	NationalID     id.NationalID    `json:"national_id"`
	Login          string           `json:"login"`
	CredentialHash string           `json:"-"` // bcrypt hash, never serialized
	Phone          string           `json:"phone,omitempty"`
	Email          string           `json:"email,omitempty"`
	GivenName      string           `json:"given_name"`
	FamilyName     string           `json:"family_name"`
	Role           Role             `json:"role"`
	RegisteredAt   time.Time        `json:"registered_at"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewIdentityParams carries the base fields for registration. Field-format
// validation (phone pattern, email pattern) happens at the handler boundary;
// the constructor enforces only structural invariants.
type NewIdentityParams struct {
	NationalID     id.NationalID
	Login          string
	CredentialHash string
	Phone          string
	Email          string
	GivenName      string
	FamilyName     string
}

// NewIdentity constructs an active Identity with audit timestamps set to now.
func NewIdentity(participantID id.ParticipantID, role Role, p NewIdentityParams, now time.Time) (*Identity, error) {
	if participantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participant id is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role must be subject or caregiver")
	}
	if p.NationalID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "national id is required")
	}
	login := strings.TrimSpace(p.Login)
	if len(login) < 3 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "login must have at least 3 characters")
	}
	if p.CredentialHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential hash is required")
	}
	if strings.TrimSpace(p.GivenName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "given name is required")
	}
	return &Identity{
		ID:             participantID,
		NationalID:     p.NationalID,
		Login:          login,
		CredentialHash: p.CredentialHash,
		Phone:          strings.TrimSpace(p.Phone),
		Email:          strings.TrimSpace(p.Email),
		GivenName:      strings.TrimSpace(p.GivenName),
		FamilyName:     strings.TrimSpace(p.FamilyName),
		Role:           role,
		RegisteredAt:   now,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IdentityChanges is the partial update set for base identity fields.
// Nil means "leave unchanged"; a pointer to the empty string clears an
// optional field (phone, email).
type IdentityChanges struct {
	GivenName  *string
	FamilyName *string
	Phone      *string
	Email      *string
}

// IsZero reports whether no base field changes.
func (c IdentityChanges) IsZero() bool {
	return c.GivenName == nil && c.FamilyName == nil && c.Phone == nil && c.Email == nil
}

// Apply merges the changes into the identity and bumps UpdatedAt.
func (c IdentityChanges) Apply(identity *Identity, now time.Time) {
	if c.GivenName != nil {
		identity.GivenName = strings.TrimSpace(*c.GivenName)
	}
	if c.FamilyName != nil {
		identity.FamilyName = strings.TrimSpace(*c.FamilyName)
	}
	if c.Phone != nil {
		identity.Phone = strings.TrimSpace(*c.Phone)
	}
	if c.Email != nil {
		identity.Email = strings.TrimSpace(*c.Email)
	}
	identity.UpdatedAt = now
}
