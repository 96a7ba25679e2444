// Package postgres provides a PostgreSQL-backed moments.Store using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/auricle-audio/auricle/internal/moments"
)

// Schema is the SQL DDL for the captured_moments and saved_terms tables.
// Execute it via [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS captured_moments (
    id               TEXT PRIMARY KEY,
    transcript       TEXT NOT NULL,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_captured_moments_created ON captured_moments(created_at DESC);

CREATE TABLE IF NOT EXISTS saved_terms (
    id          TEXT PRIMARY KEY,
    word        TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_saved_terms_created ON saved_terms(created_at DESC);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a moments.Store backed by PostgreSQL.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ moments.Store = (*Store)(nil)

// New creates a Store using the given connection or pool. Call
// [Store.Migrate] before issuing queries against a fresh database.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the tables and indexes if they
// do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("moments: migrate: %w", err)
	}
	return nil
}

// InsertMoment implements moments.Store.
func (s *Store) InsertMoment(ctx context.Context, m *moments.Moment) error {
	if strings.TrimSpace(m.Transcript) == "" {
		return errors.New("moments: transcript must not be empty")
	}

	const query = `
		INSERT INTO captured_moments (id, transcript, duration_seconds)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	id := uuid.NewString()
	if err := s.db.QueryRow(ctx, query, id, m.Transcript, m.DurationSeconds).Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("moments: insert moment: %w", err)
	}
	m.ID = id
	return nil
}

// ListMoments implements moments.Store.
func (s *Store) ListMoments(ctx context.Context) ([]moments.Moment, error) {
	const query = `
		SELECT id, transcript, duration_seconds, created_at
		FROM captured_moments
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("moments: list moments: %w", err)
	}
	defer rows.Close()

	var out []moments.Moment
	for rows.Next() {
		var m moments.Moment
		if err := rows.Scan(&m.ID, &m.Transcript, &m.DurationSeconds, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("moments: list moments scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("moments: list moments: %w", err)
	}
	return out, nil
}

// DeleteMoment implements moments.Store. Deleting an unknown ID is not an
// error.
func (s *Store) DeleteMoment(ctx context.Context, id string) error {
	const query = `DELETE FROM captured_moments WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("moments: delete moment %q: %w", id, err)
	}
	return nil
}

// InsertTerm implements moments.Store.
func (s *Store) InsertTerm(ctx context.Context, t *moments.Term) error {
	if strings.TrimSpace(t.Word) == "" {
		return errors.New("moments: word must not be empty")
	}

	const query = `
		INSERT INTO saved_terms (id, word, explanation)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	id := uuid.NewString()
	if err := s.db.QueryRow(ctx, query, id, t.Word, t.Explanation).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("moments: insert term: %w", err)
	}
	t.ID = id
	return nil
}

// ListTerms implements moments.Store.
func (s *Store) ListTerms(ctx context.Context) ([]moments.Term, error) {
	const query = `
		SELECT id, word, explanation, created_at
		FROM saved_terms
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("moments: list terms: %w", err)
	}
	defer rows.Close()

	var out []moments.Term
	for rows.Next() {
		var t moments.Term
		if err := rows.Scan(&t.ID, &t.Word, &t.Explanation, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("moments: list terms scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("moments: list terms: %w", err)
	}
	return out, nil
}

// DeleteTerm implements moments.Store. Deleting an unknown ID is not an
// error.
func (s *Store) DeleteTerm(ctx context.Context, id string) error {
	const query = `DELETE FROM saved_terms WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("moments: delete term %q: %w", id, err)
	}
	return nil
}
