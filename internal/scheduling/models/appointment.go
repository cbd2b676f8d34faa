// Package models defines the appointment aggregate and its status state
// machine. An appointment occupies one slot per party: at most one active
// appointment may exist for a caregiver at a (date, time), and independently
// for a subject. The stores enforce the slot invariant; this package defines
// what "active" means.
package models

import (
	"time"

	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
)

// Status is the appointment lifecycle state. The set is closed; anything
// else is rejected at the boundary.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
	StatusRescheduled Status = "rescheduled"
)

// ParseStatus constructs a Status from external input.
// Errors: CodeInvalidInput for anything outside the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted, StatusRescheduled:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput,
		"status must be one of scheduled, confirmed, cancelled, completed, rescheduled")
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// IsActive reports whether the appointment still occupies its slot.
func (s Status) IsActive() bool {
	return !s.IsTerminal()
}

// CanTransitionTo reports whether the state machine allows moving to next.
// Active states may move to confirmed, cancelled, completed, or rescheduled;
// nothing returns to scheduled, and terminal states accept no transitions.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusRescheduled:
		return true
	}
	return false
}

// Appointment is a booked slot between a caregiver and a subject. Date is a
// calendar date (midnight UTC); Time is the wall-clock slot within that day.
type Appointment struct {
	ID          id.AppointmentID `json:"id"`
	Date        time.Time        `json:"date"`
	Time        id.ClockTime     `json:"time"`
	CaregiverID id.ParticipantID `json:"caregiver_id"`
	SubjectID   id.ParticipantID `json:"subject_id"`
	Status      Status           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DateOnly truncates a timestamp to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewAppointment constructs an appointment with audit timestamps set to now.
// An empty status defaults to scheduled.
func NewAppointment(appointmentID id.AppointmentID, date time.Time, clock id.ClockTime, caregiverID, subjectID id.ParticipantID, status Status, now time.Time) (*Appointment, error) {
	if appointmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "appointment id is required")
	}
	if date.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "date is required")
	}
	if clock == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "time is required")
	}
	if caregiverID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "caregiver id is required")
	}
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject id is required")
	}
	if status == "" {
		status = StatusScheduled
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "status is outside the closed set")
	}
	return &Appointment{
		ID:          appointmentID,
		Date:        DateOnly(date),
		Time:        clock,
		CaregiverID: caregiverID,
		SubjectID:   subjectID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Changes is the partial update set for an appointment. A status change goes
// through the state machine; slot coordinate changes re-trigger conflict
// checks in the store.
type Changes struct {
	Date        *time.Time
	Time        *id.ClockTime
	CaregiverID *id.ParticipantID
	SubjectID   *id.ParticipantID
	Status      *Status
}

// IsZero reports whether no field changes.
func (c Changes) IsZero() bool {
	return c.Date == nil && c.Time == nil && c.CaregiverID == nil &&
		c.SubjectID == nil && c.Status == nil
}

// MovesSlot reports whether the change set touches any slot coordinate.
func (c Changes) MovesSlot() bool {
	return c.Date != nil || c.Time != nil || c.CaregiverID != nil || c.SubjectID != nil
}

// Apply merges the changes into the appointment and bumps UpdatedAt.
// Errors: CodeConflict when the status transition is not allowed.
func (c Changes) Apply(a *Appointment, now time.Time) error {
	if c.Status != nil && *c.Status != a.Status {
		if !a.Status.CanTransitionTo(*c.Status) {
			return dErrors.New(dErrors.CodeConflict,
				"cannot transition appointment from "+string(a.Status)+" to "+string(*c.Status))
		}
		a.Status = *c.Status
	}
	if c.Date != nil {
		a.Date = DateOnly(*c.Date)
	}
	if c.Time != nil {
		a.Time = *c.Time
	}
	if c.CaregiverID != nil {
		a.CaregiverID = *c.CaregiverID
	}
	if c.SubjectID != nil {
		a.SubjectID = *c.SubjectID
	}
	a.UpdatedAt = now
	return nil
}

// ListFilter narrows List results. Nil fields match everything.
type ListFilter struct {
	CaregiverID *id.ParticipantID
	SubjectID   *id.ParticipantID
	Date        *time.Time
	Status      *Status
}

// Matches reports whether an appointment passes the filter.
func (f ListFilter) Matches(a *Appointment) bool {
	if f.CaregiverID != nil && a.CaregiverID != *f.CaregiverID {
		return false
	}
	if f.SubjectID != nil && a.SubjectID != *f.SubjectID {
		return false
	}
	if f.Date != nil && !a.Date.Equal(DateOnly(*f.Date)) {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	return true
}
