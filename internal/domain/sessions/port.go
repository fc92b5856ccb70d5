package sessions

import "context"

// Repository port (interface for session persistence). Save upserts the full
// row; single-record operations are assumed atomic at the store level.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id SessionID) (*Session, error)
	List(ctx context.Context, limit, offset int, status Status) ([]*Session, error)
	Delete(ctx context.Context, id SessionID) error
}

// SourceStore port (interface for uploaded source persistence). ReadSource
// returns ErrNoSource when nothing was uploaded for the session.
type SourceStore interface {
	SaveSource(ctx context.Context, id SessionID, code string) error
	HasSource(ctx context.Context, id SessionID) (bool, error)
	ReadSource(ctx context.Context, id SessionID) (string, error)
	DeleteSource(ctx context.Context, id SessionID) error
}
