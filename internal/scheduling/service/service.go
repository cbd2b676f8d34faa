// Package service orchestrates appointment booking. The service pre-checks
// slots only to shape fast conflict errors; the store's conditional write is
// the authoritative guard, so two concurrent bookings of one slot always
// resolve to exactly one success regardless of substrate.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	participant "amparo/internal/participant/models"
	"amparo/internal/scheduling/metrics"
	"amparo/internal/scheduling/models"
	"amparo/internal/scheduling/store"
	id "amparo/pkg/domain"
	dErrors "amparo/pkg/domain-errors"
	"amparo/pkg/platform/sentinel"
	"amparo/pkg/requestcontext"
)

type AppointmentStore interface {
	CreateIfSlotFree(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, appointmentID id.AppointmentID) (*models.Appointment, error)
	UpdateIfSlotFree(ctx context.Context, appt *models.Appointment) error
	Delete(ctx context.Context, appointmentID id.AppointmentID) (bool, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Appointment, error)
}

// Service owns the appointment lifecycle.
type Service struct {
	appointments AppointmentStore
	directory    ParticipantDirectory
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(appointments AppointmentStore, directory ParticipantDirectory, opts ...Option) *Service {
	s := &Service{appointments: appointments, directory: directory}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the booking payload.
type CreateParams struct {
	Date        time.Time
	Time        id.ClockTime
	CaregiverID id.ParticipantID
	SubjectID   id.ParticipantID
	Status      models.Status
}

// Create books an appointment. Dates strictly before today (request-scoped
// clock, date-only comparison) are rejected; both parties must be registered
// with the matching role.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Appointment, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	if models.DateOnly(params.Date).Before(models.DateOnly(now)) {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment date cannot be in the past")
	}
	if err := s.checkParties(ctx, params.CaregiverID, params.SubjectID); err != nil {
		return nil, err
	}

	appt, err := models.NewAppointment(id.NewAppointmentID(), params.Date, params.Time,
		params.CaregiverID, params.SubjectID, params.Status, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	// Fast-path conflict shaping; the store's conditional insert decides.
	if err := s.precheckSlots(ctx, appt); err != nil {
		return nil, err
	}
	if err := s.appointments.CreateIfSlotFree(ctx, appt); err != nil {
		return nil, s.translateSlotErr(err)
	}

	s.logAudit(ctx, "appointment.booked",
		"appointment_id", appt.ID,
		"caregiver_id", appt.CaregiverID,
		"subject_id", appt.SubjectID,
		"date", appt.Date.Format(time.DateOnly),
		"time", appt.Time)
	s.incrementBooked()
	s.observeCreate(start)
	return appt, nil
}

// Get returns an appointment by id.
func (s *Service) Get(ctx context.Context, appointmentID id.AppointmentID) (*models.Appointment, error) {
	appt, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "appointment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load appointment")
	}
	return appt, nil
}

// List returns appointments matching the filter, ordered by (date, time).
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Appointment, error) {
	appointments, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list appointments")
	}
	return appointments, nil
}

// Update applies partial changes. Slot coordinate changes re-run the
// conflict checks against the new slot, excluding the record itself; party
// changes re-validate against the directory.
func (s *Service) Update(ctx context.Context, appointmentID id.AppointmentID, changes models.Changes) (*models.Appointment, error) {
	if changes.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}

	appt, err := s.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if changes.CaregiverID != nil || changes.SubjectID != nil {
		caregiverID := appt.CaregiverID
		if changes.CaregiverID != nil {
			caregiverID = *changes.CaregiverID
		}
		subjectID := appt.SubjectID
		if changes.SubjectID != nil {
			subjectID = *changes.SubjectID
		}
		if err := s.checkParties(ctx, caregiverID, subjectID); err != nil {
			return nil, err
		}
	}

	previousStatus := appt.Status
	if err := changes.Apply(appt, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if changes.MovesSlot() {
		if err := s.precheckSlots(ctx, appt); err != nil {
			return nil, err
		}
	}
	if err := s.appointments.UpdateIfSlotFree(ctx, appt); err != nil {
		return nil, s.translateSlotErr(err)
	}

	if appt.Status != previousStatus {
		s.incrementStatusChange(string(appt.Status))
	}
	s.logAudit(ctx, "appointment.updated", "appointment_id", appt.ID, "status", appt.Status)
	return appt, nil
}

// UpdateStatus moves the appointment through the status state machine.
func (s *Service) UpdateStatus(ctx context.Context, appointmentID id.AppointmentID, status models.Status) (*models.Appointment, error) {
	return s.Update(ctx, appointmentID, models.Changes{Status: &status})
}

// Reschedule moves an appointment to a new slot and marks it rescheduled.
func (s *Service) Reschedule(ctx context.Context, appointmentID id.AppointmentID, date time.Time, clock id.ClockTime) (*models.Appointment, error) {
	now := requestcontext.Now(ctx)
	if models.DateOnly(date).Before(models.DateOnly(now)) {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment date cannot be in the past")
	}
	status := models.StatusRescheduled
	return s.Update(ctx, appointmentID, models.Changes{Date: &date, Time: &clock, Status: &status})
}

// Delete removes an appointment outright and reports whether it existed.
func (s *Service) Delete(ctx context.Context, appointmentID id.AppointmentID) (bool, error) {
	existed, err := s.appointments.Delete(ctx, appointmentID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete appointment")
	}
	if existed {
		s.logAudit(ctx, "appointment.deleted", "appointment_id", appointmentID)
	}
	return existed, nil
}

func (s *Service) checkParties(ctx context.Context, caregiverID, subjectID id.ParticipantID) error {
	ok, err := s.directory.Exists(ctx, caregiverID, participant.RoleCaregiver)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check caregiver")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "caregiver not found")
	}
	ok, err = s.directory.Exists(ctx, subjectID, participant.RoleSubject)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check subject")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "subject not found")
	}
	return nil
}

// precheckSlots surfaces conflicts before the write without claiming to be
// authoritative: a racing booking between check and write still loses at the
// store.
func (s *Service) precheckSlots(ctx context.Context, appt *models.Appointment) error {
	if !appt.Status.IsActive() {
		return nil
	}
	date := appt.Date
	occupied, err := s.appointments.List(ctx, models.ListFilter{CaregiverID: &appt.CaregiverID, Date: &date})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check caregiver slot")
	}
	if slotHeld(occupied, appt) {
		return s.translateSlotErr(store.ErrCaregiverSlotTaken)
	}
	occupied, err = s.appointments.List(ctx, models.ListFilter{SubjectID: &appt.SubjectID, Date: &date})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check subject slot")
	}
	if slotHeld(occupied, appt) {
		return s.translateSlotErr(store.ErrSubjectSlotTaken)
	}
	return nil
}

func slotHeld(occupied []*models.Appointment, appt *models.Appointment) bool {
	for _, existing := range occupied {
		if existing.ID != appt.ID && existing.Status.IsActive() && existing.Time == appt.Time {
			return true
		}
	}
	return false
}

func (s *Service) translateSlotErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrCaregiverSlotTaken):
		s.incrementSlotConflict("caregiver")
		return dErrors.New(dErrors.CodeConflict, "caregiver already has an appointment at this slot")
	case errors.Is(err, store.ErrSubjectSlotTaken):
		s.incrementSlotConflict("subject")
		return dErrors.New(dErrors.CodeConflict, "subject already has an appointment at this slot")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "appointment not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write appointment")
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) incrementBooked() {
	if s.metrics != nil {
		s.metrics.IncrementBooked()
	}
}

func (s *Service) incrementSlotConflict(party string) {
	if s.metrics != nil {
		s.metrics.IncrementSlotConflict(party)
	}
}

func (s *Service) incrementStatusChange(status string) {
	if s.metrics != nil {
		s.metrics.IncrementStatusChange(status)
	}
}

func (s *Service) observeCreate(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCreate(start)
	}
}
