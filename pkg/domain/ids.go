// Package domain holds shared value types used across modules.
//
// Typed IDs wrap uuid.UUID so a ParticipantID can never be passed where an
// AppointmentID is expected; the compiler enforces the distinction. Construct
// IDs via the Parse functions at trust boundaries so invalid input is
// rejected before it reaches a store.
package domain

import (
	"github.com/google/uuid"

	dErrors "amparo/pkg/domain-errors"
)

// ParticipantID identifies a registered participant (subject or caregiver).
// The same ID keys both the base identity record and its role profile.
type ParticipantID uuid.UUID

// AppointmentID identifies a single appointment record.
type AppointmentID uuid.UUID

// NewParticipantID returns a fresh random participant ID.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.New())
}

// NewAppointmentID returns a fresh random appointment ID.
func NewAppointmentID() AppointmentID {
	return AppointmentID(uuid.New())
}

// ParseParticipantID constructs a ParticipantID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s, "participant id")
	if err != nil {
		return ParticipantID{}, err
	}
	return ParticipantID(u), nil
}

// ParseAppointmentID constructs an AppointmentID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseAppointmentID(s string) (AppointmentID, error) {
	u, err := parseUUID(s, "appointment id")
	if err != nil {
		return AppointmentID{}, err
	}
	return AppointmentID(u), nil
}

func (id ParticipantID) String() string { return uuid.UUID(id).String() }

func (id ParticipantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id AppointmentID) String() string { return uuid.UUID(id).String() }

func (id AppointmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	// uuid.Parse accepts several exotic encodings (URNs, braced forms);
	// restrict to the canonical 36-char form used on the wire.
	if len(s) != 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must be a canonical UUID")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, what+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil UUID")
	}
	return u, nil
}
