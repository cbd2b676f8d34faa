package identity

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

// Postgres persists identities in PostgreSQL. Uniqueness of national id,
// login (case-insensitive), and email (case-insensitive, when present) is
// enforced by unique indexes; the store maps constraint violations back to
// the shared duplicate-key errors. Writes join a surrounding transaction
// when one is carried in the context.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema creates the identities table and its unique indexes.
// Index names are load-bearing: constraint mapping keys off them.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id UUID PRIMARY KEY,
	national_id TEXT NOT NULL,
	login TEXT NOT NULL,
	credential_hash TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	given_name TEXT NOT NULL,
	family_name TEXT NOT NULL,
	role TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	active BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS identities_national_id_key ON identities (national_id);
CREATE UNIQUE INDEX IF NOT EXISTS identities_login_key ON identities (lower(login));
CREATE UNIQUE INDEX IF NOT EXISTS identities_email_key ON identities (lower(email)) WHERE email <> '';
`

// EnsureSchema applies the identities schema. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure identities schema: %w", err)
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

func (s *Postgres) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (
			id, national_id, login, credential_hash, phone, email,
			given_name, family_name, role, registered_at, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		identity.ID.String(), identity.NationalID.String(), identity.Login,
		identity.CredentialHash, identity.Phone, identity.Email,
		identity.GivenName, identity.FamilyName, string(identity.Role),
		identity.RegisteredAt, identity.Active, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Identity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectIdentity+` WHERE id = $1`, participantID.String())
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return identity, nil
}

func (s *Postgres) FindByIDs(ctx context.Context, ids []id.ParticipantID) ([]*models.Identity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, participantID := range ids {
		raw[i] = participantID.String()
	}
	rows, err := s.execer(ctx).QueryContext(ctx, selectIdentity+` WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

func (s *Postgres) Update(ctx context.Context, identity *models.Identity) error {
	query := `
		UPDATE identities SET
			phone = $2, email = $3, given_name = $4, family_name = $5,
			active = $6, updated_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		identity.ID.String(), identity.Phone, identity.Email,
		identity.GivenName, identity.FamilyName, identity.Active, identity.UpdatedAt,
	)
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, participantID id.ParticipantID) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, participantID.String())
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	return affected > 0, nil
}

const selectIdentity = `
	SELECT id, national_id, login, credential_hash, phone, email,
		given_name, family_name, role, registered_at, active, created_at, updated_at
	FROM identities`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var identity models.Identity
	var rawID, rawNationalID, rawRole string
	err := row.Scan(
		&rawID, &rawNationalID, &identity.Login, &identity.CredentialHash,
		&identity.Phone, &identity.Email, &identity.GivenName, &identity.FamilyName,
		&rawRole, &identity.RegisteredAt, &identity.Active,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	participantID, err := id.ParseParticipantID(rawID)
	if err != nil {
		return nil, err
	}
	identity.ID = participantID
	identity.NationalID = id.NationalID(rawNationalID)
	identity.Role = models.Role(rawRole)
	return &identity, nil
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "identities_national_id_key":
		return store.ErrDuplicateNationalID
	case "identities_login_key":
		return store.ErrDuplicateLogin
	case "identities_email_key":
		return store.ErrDuplicateEmail
	case "identities_pkey":
		return fmt.Errorf("identity id: %w", sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("unique violation on %s: %w", pqErr.Constraint, sentinel.ErrAlreadyUsed)
}
