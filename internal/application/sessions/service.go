package sessions

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/rustgreen/backend/internal/application"
	anadom "github.com/rustgreen/backend/internal/domain/analysis"
	domain "github.com/rustgreen/backend/internal/domain/sessions"
)

// MaxCodeChars caps submitted source at the API boundary.
const MaxCodeChars = 10000

// Enqueuer is the producer-side view of the analysis job queue.
type Enqueuer interface {
	Enqueue(id domain.SessionID)
}

// Service implements the API-facing session use-cases. The worker owns a
// session once dequeued; this service only creates, reads and patches rows.
type Service struct {
	Repo    domain.Repository
	Results anadom.ResultRepository
	Source  domain.SourceStore
	Queue   Enqueuer
	Clock   application.Clock
}

//
// ==== USE CASES ====
//

type CreateSessionCommand struct {
	Code         string
	OrigLocation string
}

// Create validates the input, persists a pending session, stores the uploaded
// source and enqueues the job. The caller answers immediately (202 semantics);
// the worker picks the job up later.
func (s *Service) Create(ctx context.Context, cmd CreateSessionCommand) (*domain.Session, error) {
	if cmd.Code == "" && cmd.OrigLocation == "" {
		return nil, errors.New("either code or orig_location must be provided")
	}
	if cmd.Code != "" && cmd.OrigLocation != "" {
		return nil, errors.New("code and orig_location are mutually exclusive")
	}
	if len(cmd.Code) > MaxCodeChars {
		return nil, fmt.Errorf("code exceeds maximum size of %d characters", MaxCodeChars)
	}

	now := s.Clock.Now()
	sess := &domain.Session{
		ID:           domain.SessionID(uuid.New().String()),
		OrigLocation: cmd.OrigLocation,
		Status:       domain.StatusPending,
		Progress:     0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	if cmd.Code != "" {
		if err := s.Source.SaveSource(ctx, sess.ID, cmd.Code); err != nil {
			return nil, fmt.Errorf("saving uploaded source: %w", err)
		}
	}

	s.Queue.Enqueue(sess.ID)
	log.Printf("sessions: created %s, queued for analysis", sess.ID)
	return sess, nil
}

// Get returns one session row.
func (s *Service) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.Repo.Get(ctx, id)
}

// GetWithResults returns the session plus its persisted analyses and blocks.
func (s *Service) GetWithResults(ctx context.Context, id domain.SessionID) (*domain.Session, []*anadom.Result, error) {
	sess, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.Results.ListBySession(ctx, string(id))
	if err != nil {
		return nil, nil, err
	}
	return sess, results, nil
}

// List returns sessions, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, limit, offset int, status domain.Status) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.Repo.List(ctx, limit, offset, status)
}

type UpdateSessionCommand struct {
	Status       *domain.Status
	Progress     *int
	ErrorMessage *string
}

// Update patches session state. Used by internal tooling, not by the worker
// (the worker writes through the repository directly). Setting a terminal
// status stamps the completion time. Last write wins on races with the worker.
func (s *Service) Update(ctx context.Context, id domain.SessionID, cmd UpdateSessionCommand) (*domain.Session, error) {
	sess, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Status != nil {
		sess.Status = *cmd.Status
		if sess.Status.Terminal() && sess.CompletedAt == nil {
			now := s.Clock.Now()
			sess.CompletedAt = &now
		}
	}
	if cmd.Progress != nil {
		sess.Progress = *cmd.Progress
	}
	if cmd.ErrorMessage != nil {
		sess.ErrorMessage = *cmd.ErrorMessage
	}
	sess.UpdatedAt = s.Clock.Now()

	if err := s.Repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return sess, nil
}

// Delete removes the session row, its results and any stored source.
func (s *Service) Delete(ctx context.Context, id domain.SessionID) error {
	if _, err := s.Repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Results.DeleteBySession(ctx, string(id)); err != nil {
		return fmt.Errorf("deleting session results: %w", err)
	}
	if err := s.Source.DeleteSource(ctx, id); err != nil {
		log.Printf("sessions: deleting source for %s: %v", id, err)
	}
	return s.Repo.Delete(ctx, id)
}
