package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/rustgreen/backend/internal/domain/sessions"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save insert/update Session record
func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO sessions
(id, orig_location, status, progress, created_at, updated_at, completed_at, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 progress = EXCLUDED.progress,
 updated_at = EXCLUDED.updated_at,
 completed_at = EXCLUDED.completed_at,
 error_message = EXCLUDED.error_message;`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, nullString(s.OrigLocation), s.Status, s.Progress,
		s.CreatedAt, s.UpdatedAt, nullTime(s.CompletedAt), nullString(s.ErrorMessage),
	)
	return err
}

// Get by ID
func (r *SessionRepository) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	const q = `
SELECT id, orig_location, status, progress, created_at, updated_at, completed_at, error_message
FROM sessions
WHERE id=$1
LIMIT 1;`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

// List newest first with optional status filter
func (r *SessionRepository) List(ctx context.Context, limit, offset int, status domain.Status) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
SELECT id, orig_location, status, progress, created_at, updated_at, completed_at, error_message
FROM sessions`
	args := []any{}
	next := 1
	if status != "" {
		query += fmt.Sprintf("\nWHERE status = $%d", next)
		args = append(args, status)
		next++
	}
	query += fmt.Sprintf("\nORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d;", next, next+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a session row.
func (r *SessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var origLocation, errMsg sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(
		&s.ID, &origLocation, &s.Status, &s.Progress,
		&s.CreatedAt, &s.UpdatedAt, &completedAt, &errMsg,
	); err != nil {
		return nil, err
	}
	s.OrigLocation = origLocation.String
	s.ErrorMessage = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
