package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"amparo/internal/scheduling/models"
	"amparo/internal/scheduling/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
	txcontext "amparo/pkg/platform/tx"
)

// Postgres persists appointments in PostgreSQL. The slot invariant is
// enforced by two partial unique indexes scoped to active statuses, so the
// database, not the service pre-check, decides which of two concurrent
// bookings wins. Index names are load-bearing: constraint mapping keys off
// them.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed appointment store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema creates the appointments table and the partial slot indexes.
// Cancelled and completed appointments fall out of the indexes and release
// their slots.
const Schema = `
CREATE TABLE IF NOT EXISTS appointments (
	id UUID PRIMARY KEY,
	date DATE NOT NULL,
	time TEXT NOT NULL,
	caregiver_id UUID NOT NULL,
	subject_id UUID NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS appointments_caregiver_slot_key
	ON appointments (caregiver_id, date, time)
	WHERE status NOT IN ('cancelled', 'completed');
CREATE UNIQUE INDEX IF NOT EXISTS appointments_subject_slot_key
	ON appointments (subject_id, date, time)
	WHERE status NOT IN ('cancelled', 'completed');
CREATE INDEX IF NOT EXISTS appointments_caregiver_idx ON appointments (caregiver_id);
CREATE INDEX IF NOT EXISTS appointments_subject_idx ON appointments (subject_id);
`

// EnsureSchema applies the appointments schema. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure appointments schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateIfSlotFree inserts the appointment; the partial unique indexes
// reject it when either party's slot is already held by an active
// appointment.
func (s *Postgres) CreateIfSlotFree(ctx context.Context, appt *models.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, date, time, caregiver_id, subject_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		appt.ID.String(), appt.Date, appt.Time.String(),
		appt.CaregiverID.String(), appt.SubjectID.String(),
		string(appt.Status), appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if conflict := mapSlotViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, appointmentID id.AppointmentID) (*models.Appointment, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectAppointment+` WHERE id = $1`, appointmentID.String())
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return appt, nil
}

// UpdateIfSlotFree rewrites the full row; a slot move that collides with
// another active appointment trips the same partial indexes as an insert.
func (s *Postgres) UpdateIfSlotFree(ctx context.Context, appt *models.Appointment) error {
	query := `
		UPDATE appointments SET
			date = $2, time = $3, caregiver_id = $4, subject_id = $5,
			status = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		appt.ID.String(), appt.Date, appt.Time.String(),
		appt.CaregiverID.String(), appt.SubjectID.String(),
		string(appt.Status), appt.UpdatedAt,
	)
	if err != nil {
		if conflict := mapSlotViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, appointmentID id.AppointmentID) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, appointmentID.String())
	if err != nil {
		return false, fmt.Errorf("delete appointment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete appointment: %w", err)
	}
	return affected > 0, nil
}

// List returns matching appointments ordered by (date, time) ascending.
func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.Appointment, error) {
	query := selectAppointment
	var clauses []string
	var args []any
	appendClause := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.CaregiverID != nil {
		appendClause("caregiver_id", filter.CaregiverID.String())
	}
	if filter.SubjectID != nil {
		appendClause("subject_id", filter.SubjectID.String())
	}
	if filter.Date != nil {
		appendClause("date", models.DateOnly(*filter.Date))
	}
	if filter.Status != nil {
		appendClause("status", string(*filter.Status))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY date ASC, time ASC"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return appointments, nil
}

const selectAppointment = `
	SELECT id, date, time, caregiver_id, subject_id, status, created_at, updated_at
	FROM appointments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var appt models.Appointment
	var rawID, rawTime, rawCaregiver, rawSubject, rawStatus string
	var date time.Time
	err := row.Scan(
		&rawID, &date, &rawTime, &rawCaregiver, &rawSubject,
		&rawStatus, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	appointmentID, err := id.ParseAppointmentID(rawID)
	if err != nil {
		return nil, err
	}
	caregiverID, err := id.ParseParticipantID(rawCaregiver)
	if err != nil {
		return nil, err
	}
	subjectID, err := id.ParseParticipantID(rawSubject)
	if err != nil {
		return nil, err
	}
	appt.ID = appointmentID
	appt.Date = models.DateOnly(date)
	appt.Time = id.ClockTime(rawTime)
	appt.CaregiverID = caregiverID
	appt.SubjectID = subjectID
	appt.Status = models.Status(rawStatus)
	return &appt, nil
}

func mapSlotViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "appointments_caregiver_slot_key":
		return store.ErrCaregiverSlotTaken
	case "appointments_subject_slot_key":
		return store.ErrSubjectSlotTaken
	case "appointments_pkey":
		return fmt.Errorf("appointment id: %w", sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("unique violation on %s: %w", pqErr.Constraint, sentinel.ErrAlreadyUsed)
}
