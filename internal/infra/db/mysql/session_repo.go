package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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
VALUES (?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 progress=VALUES(progress),
 updated_at=VALUES(updated_at),
 completed_at=VALUES(completed_at),
 error_message=VALUES(error_message);
`
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
WHERE id=? LIMIT 1;
`
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
	if status != "" {
		query += "\nWHERE status = ?"
		args = append(args, status)
	}
	query += "\nORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?;"
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

// Delete removes a session row (analyses cascade via FK in the schema).
func (r *SessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?;`, id)
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
