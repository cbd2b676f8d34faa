package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"amparo/internal/participant/models"
	"amparo/internal/participant/store"
	id "amparo/pkg/domain"
	"amparo/pkg/platform/sentinel"
	txcontext "amparo/pkg/platform/tx"
)

// Postgres persists role profiles in PostgreSQL, one table per variant.
// The participant_id column is the primary key in both tables, which gives
// "at most one profile per identity" for free. Writes join a surrounding
// transaction when one is carried in the context.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed profile store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema creates the two profile tables. The registration-number index name
// is load-bearing for constraint mapping. The foreign keys document the
// back-reference; deletes still run profile-first at the service layer.
const Schema = `
CREATE TABLE IF NOT EXISTS caregiver_profiles (
	participant_id UUID PRIMARY KEY REFERENCES identities (id),
	registration_number TEXT NOT NULL,
	job_title TEXT NOT NULL DEFAULT '',
	specialty TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS caregiver_profiles_registration_number_key
	ON caregiver_profiles (lower(registration_number));
CREATE TABLE IF NOT EXISTS subject_profiles (
	participant_id UUID PRIMARY KEY REFERENCES identities (id),
	address TEXT NOT NULL DEFAULT '',
	birth_date DATE NOT NULL,
	age INT NOT NULL,
	education_level TEXT NOT NULL DEFAULT '',
	ethnicity TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema applies the profile schema. Idempotent; requires the
// identities table to exist first.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure profile schema: %w", err)
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

func (s *Postgres) Create(ctx context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var err error
	switch p.Role {
	case models.RoleCaregiver:
		_, err = s.execer(ctx).ExecContext(ctx, `
			INSERT INTO caregiver_profiles (participant_id, registration_number, job_title, specialty)
			VALUES ($1, $2, $3, $4)`,
			p.Caregiver.ParticipantID.String(), p.Caregiver.RegistrationNumber,
			p.Caregiver.JobTitle, p.Caregiver.Specialty,
		)
	case models.RoleSubject:
		_, err = s.execer(ctx).ExecContext(ctx, `
			INSERT INTO subject_profiles (participant_id, address, birth_date, age, education_level, ethnicity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.Subject.ParticipantID.String(), p.Subject.Address, p.Subject.BirthDate,
			p.Subject.Age, p.Subject.EducationLevel, p.Subject.Ethnicity,
		)
	}
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("create %s profile: %w", p.Role, err)
	}
	return nil
}

func (s *Postgres) FindByParticipant(ctx context.Context, participantID id.ParticipantID) (models.Profile, error) {
	caregiver, err := s.findCaregiver(ctx, participantID)
	if err == nil {
		return models.Profile{Role: models.RoleCaregiver, Caregiver: caregiver}, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Profile{}, err
	}
	subject, err := s.findSubject(ctx, participantID)
	if err != nil {
		return models.Profile{}, err
	}
	return models.Profile{Role: models.RoleSubject, Subject: subject}, nil
}

func (s *Postgres) Update(ctx context.Context, p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var res sql.Result
	var err error
	switch p.Role {
	case models.RoleCaregiver:
		res, err = s.execer(ctx).ExecContext(ctx, `
			UPDATE caregiver_profiles
			SET registration_number = $2, job_title = $3, specialty = $4
			WHERE participant_id = $1`,
			p.Caregiver.ParticipantID.String(), p.Caregiver.RegistrationNumber,
			p.Caregiver.JobTitle, p.Caregiver.Specialty,
		)
	case models.RoleSubject:
		res, err = s.execer(ctx).ExecContext(ctx, `
			UPDATE subject_profiles
			SET address = $2, birth_date = $3, age = $4, education_level = $5, ethnicity = $6
			WHERE participant_id = $1`,
			p.Subject.ParticipantID.String(), p.Subject.Address, p.Subject.BirthDate,
			p.Subject.Age, p.Subject.EducationLevel, p.Subject.Ethnicity,
		)
	}
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("update %s profile: %w", p.Role, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s profile: %w", p.Role, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, participantID id.ParticipantID) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM caregiver_profiles WHERE participant_id = $1`, participantID.String())
	if err != nil {
		return false, fmt.Errorf("delete caregiver profile: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return true, nil
	}
	res, err = s.execer(ctx).ExecContext(ctx,
		`DELETE FROM subject_profiles WHERE participant_id = $1`, participantID.String())
	if err != nil {
		return false, fmt.Errorf("delete subject profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subject profile: %w", err)
	}
	return affected > 0, nil
}

func (s *Postgres) List(ctx context.Context, roleFilter *models.Role) ([]models.Profile, error) {
	var profiles []models.Profile
	if roleFilter == nil || *roleFilter == models.RoleCaregiver {
		caregivers, err := s.queryCaregivers(ctx, selectCaregiver, nil)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, caregivers...)
	}
	if roleFilter == nil || *roleFilter == models.RoleSubject {
		subjects, err := s.querySubjects(ctx)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, subjects...)
	}
	return profiles, nil
}

func (s *Postgres) ListCaregiversBySpecialty(ctx context.Context, specialty string) ([]models.Profile, error) {
	return s.queryCaregivers(ctx, selectCaregiver+` WHERE lower(specialty) = lower($1)`, []any{specialty})
}

func (s *Postgres) ListCaregiversByJobTitle(ctx context.Context, jobTitle string) ([]models.Profile, error) {
	return s.queryCaregivers(ctx, selectCaregiver+` WHERE lower(job_title) = lower($1)`, []any{jobTitle})
}

const selectCaregiver = `
	SELECT participant_id, registration_number, job_title, specialty
	FROM caregiver_profiles`

func (s *Postgres) findCaregiver(ctx context.Context, participantID id.ParticipantID) (*models.CaregiverProfile, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectCaregiver+` WHERE participant_id = $1`, participantID.String())
	caregiver, err := scanCaregiver(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find caregiver profile: %w", err)
	}
	return caregiver, nil
}

func (s *Postgres) findSubject(ctx context.Context, participantID id.ParticipantID) (*models.SubjectProfile, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT participant_id, address, birth_date, age, education_level, ethnicity
		FROM subject_profiles WHERE participant_id = $1`, participantID.String())
	subject, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find subject profile: %w", err)
	}
	return subject, nil
}

func (s *Postgres) queryCaregivers(ctx context.Context, query string, args []any) ([]models.Profile, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list caregiver profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		caregiver, err := scanCaregiver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caregiver profile: %w", err)
		}
		profiles = append(profiles, models.Profile{Role: models.RoleCaregiver, Caregiver: caregiver})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate caregiver profiles: %w", err)
	}
	return profiles, nil
}

func (s *Postgres) querySubjects(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT participant_id, address, birth_date, age, education_level, ethnicity
		FROM subject_profiles`)
	if err != nil {
		return nil, fmt.Errorf("list subject profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject profile: %w", err)
		}
		profiles = append(profiles, models.Profile{Role: models.RoleSubject, Subject: subject})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject profiles: %w", err)
	}
	return profiles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCaregiver(row rowScanner) (*models.CaregiverProfile, error) {
	var caregiver models.CaregiverProfile
	var rawID string
	if err := row.Scan(&rawID, &caregiver.RegistrationNumber, &caregiver.JobTitle, &caregiver.Specialty); err != nil {
		return nil, err
	}
	participantID, err := id.ParseParticipantID(rawID)
	if err != nil {
		return nil, err
	}
	caregiver.ParticipantID = participantID
	return &caregiver, nil
}

func scanSubject(row rowScanner) (*models.SubjectProfile, error) {
	var subject models.SubjectProfile
	var rawID string
	if err := row.Scan(&rawID, &subject.Address, &subject.BirthDate, &subject.Age,
		&subject.EducationLevel, &subject.Ethnicity); err != nil {
		return nil, err
	}
	participantID, err := id.ParseParticipantID(rawID)
	if err != nil {
		return nil, err
	}
	subject.ParticipantID = participantID
	return &subject, nil
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	if pqErr.Constraint == "caregiver_profiles_registration_number_key" {
		return store.ErrDuplicateRegistrationNumber
	}
	return fmt.Errorf("unique violation on %s: %w", pqErr.Constraint, sentinel.ErrAlreadyUsed)
}
