package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rustgreen/backend/internal/application"
	domain "github.com/rustgreen/backend/internal/domain/analysis"
	sessdom "github.com/rustgreen/backend/internal/domain/sessions"
	"github.com/rustgreen/backend/internal/middleware"
)

// Progress checkpoints. Advisory only; status carries the real lifecycle.
const (
	progressProcessing = 10
	progressAnalyzed   = 90
	progressDone       = 100
)

// Worker is the single consumer that turns queued session ids into completed
// or failed sessions. All work for one session is sequential; sessions are
// processed strictly one at a time in enqueue order.
type Worker struct {
	Sessions sessdom.Repository
	Results  domain.ResultRepository
	Source   sessdom.SourceStore
	Pipeline *Pipeline
	Queue    *Queue
	Clock    application.Clock

	// Enabled is the administrative LLM feature flag. When false the worker
	// completes sessions with zero analyses instead of invoking the pipeline.
	Enabled bool

	wg      sync.WaitGroup
	started bool
}

// Start launches the consumer goroutine. It may be called once.
func (w *Worker) Start() {
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
	log.Printf("worker: started")
}

// Stop closes the queue and waits for the in-flight job to finish. The stop
// takes effect at the top of the per-job loop; it does not abort LLM calls
// already in progress.
func (w *Worker) Stop() {
	w.Queue.Close()
	w.wg.Wait()
	log.Printf("worker: stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		id, ok := w.Queue.Dequeue()
		if !ok {
			return
		}
		// a single job's failure never stops the loop
		w.process(context.Background(), id)
	}
}

// process drives one session through the state machine. Everything after the
// session row is loaded funnels its errors into the failed transition.
func (w *Worker) process(ctx context.Context, id sessdom.SessionID) {
	sess, err := w.Sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sessdom.ErrNotFound) {
			// already deleted or bogus id; idempotent no-op
			log.Printf("worker: session %s not found, dropping job", id)
			return
		}
		log.Printf("worker: loading session %s: %v", id, err)
		return
	}

	log.Printf("worker: processing session %s", id)
	middleware.IncrementSessionsProcessing()
	sess.Status = sessdom.StatusProcessing
	sess.Progress = progressProcessing
	sess.UpdatedAt = w.Clock.Now()
	if err := w.Sessions.Save(ctx, sess); err != nil {
		w.fail(sess, fmt.Errorf("marking session processing: %w", err))
		return
	}

	if err := w.analyze(ctx, sess); err != nil {
		w.fail(sess, err)
		return
	}

	now := w.Clock.Now()
	sess.Status = sessdom.StatusCompleted
	sess.Progress = progressDone
	sess.UpdatedAt = now
	sess.CompletedAt = &now
	if err := w.Sessions.Save(ctx, sess); err != nil {
		log.Printf("worker: saving completed session %s: %v", sess.ID, err)
		return
	}
	middleware.IncrementSessionsCompleted()
	log.Printf("worker: session %s completed", sess.ID)
}

func (w *Worker) analyze(ctx context.Context, sess *sessdom.Session) error {
	code, err := w.resolveSource(ctx, sess)
	if err != nil {
		return err
	}

	var results []*domain.PipelineResult
	if !w.Enabled {
		// degraded mode: complete with zero findings, never fabricate any
		log.Printf("worker: llm feature disabled, completing session %s with no findings", sess.ID)
	} else {
		res, perr := w.Pipeline.Run(ctx, code)
		if perr != nil {
			return perr
		}
		results = append(results, res)
	}

	sess.Progress = progressAnalyzed
	sess.UpdatedAt = w.Clock.Now()
	if err := w.Sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving analysis progress: %w", err)
	}

	for _, res := range results {
		if err := w.persistResult(ctx, sess, code, res); err != nil {
			return err
		}
	}
	return nil
}

// resolveSource prefers previously uploaded code; a remote location is not
// ingestable yet, and a session with neither is invalid.
func (w *Worker) resolveSource(ctx context.Context, sess *sessdom.Session) (string, error) {
	has, err := w.Source.HasSource(ctx, sess.ID)
	if err != nil {
		return "", fmt.Errorf("checking uploaded source: %w", err)
	}
	if has {
		code, rerr := w.Source.ReadSource(ctx, sess.ID)
		if rerr != nil {
			return "", fmt.Errorf("reading uploaded source: %w", rerr)
		}
		log.Printf("worker: using uploaded source for session %s, %d chars", sess.ID, len(code))
		return code, nil
	}
	if sess.OrigLocation != "" {
		return "", fmt.Errorf("%w: %s", sessdom.ErrRemoteNotImplemented, sess.OrigLocation)
	}
	return "", sessdom.ErrInvalidSession
}

// persistResult writes zero or one (CodeBlock, Analysis) pair for a pipeline
// result. No-finding and disabled outcomes persist nothing.
func (w *Worker) persistResult(ctx context.Context, sess *sessdom.Session, code string, res *domain.PipelineResult) error {
	if res == nil {
		return nil
	}
	f := res.Finding
	if f.Outcome == domain.OutcomeNone || f.Outcome == domain.OutcomeDisabled {
		return nil
	}

	raw, lineStart, lineEnd := extractSpan(code, f.LineStart, f.LineEnd)
	now := w.Clock.Now()
	block := &domain.CodeBlock{
		ID:        domain.CodeBlockID(uuid.New().String()),
		RawCode:   raw,
		LineStart: lineStart,
		LineEnd:   lineEnd,
		CreatedAt: now,
	}

	a := &domain.Analysis{
		ID:                   domain.AnalysisID(uuid.New().String()),
		SessionID:            string(sess.ID),
		CodeBlockID:          block.ID,
		Classification:       domain.NonReplaceable,
		CWEID:                f.CWEID,
		OWASPCategory:        f.OWASPCategory,
		RiskLevel:            f.RiskLevel,
		ConfidenceScore:      f.ConfidenceScore,
		Description:          f.Description,
		ExploitationScenario: f.ExploitationScenario,
		LLMMetadata:          marshalMetadata(res),
		CreatedAt:            now,
	}

	if res.Remediation != nil {
		a.RemediationNotes = res.Remediation.Explanation
		a.CompatibilityNotes = res.Remediation.CompatibilityNotes
		if strings.TrimSpace(res.Remediation.FixedCode) != "" {
			a.Classification = domain.Replaceable
			a.SuggestedReplacement = res.Remediation.FixedCode
		}
	}
	if res.Verification != nil {
		passed := res.Verification.Passed
		a.VerificationPassed = &passed
		a.VerificationNotes = res.Verification.Explanation
		a.NewIssues = res.Verification.NewIssues
	}

	if err := w.Results.SaveResult(ctx, block, a); err != nil {
		return fmt.Errorf("persisting analysis result: %w", err)
	}
	middleware.IncrementAnalysesStored()
	return nil
}

// fail is the only place a session transitions to failed. The message is
// always non-empty and the completion timestamp is always set.
func (w *Worker) fail(sess *sessdom.Session, cause error) {
	msg := "analysis failed"
	if cause != nil && strings.TrimSpace(cause.Error()) != "" {
		msg = cause.Error()
	}
	log.Printf("worker: session %s failed: %s", sess.ID, msg)
	middleware.IncrementSessionsFailed()

	now := w.Clock.Now()
	sess.Status = sessdom.StatusFailed
	sess.ErrorMessage = msg
	sess.UpdatedAt = now
	sess.CompletedAt = &now
	if err := w.Sessions.Save(context.Background(), sess); err != nil {
		log.Printf("worker: saving failed session %s: %v", sess.ID, err)
	}
}

// extractSpan returns the 1-based inclusive line range of code named by the
// finding, falling back to the whole source when the range is absent or out of
// bounds.
func extractSpan(code string, start, end int) (string, int, int) {
	lines := strings.Split(code, "\n")
	if start < 1 || end < start || end > len(lines) {
		return code, 1, len(lines)
	}
	return strings.Join(lines[start-1:end], "\n"), start, end
}

func marshalMetadata(res *domain.PipelineResult) string {
	meta := map[string]any{"analysis": res.Finding.Metadata}
	if res.Remediation != nil {
		meta["remediation"] = res.Remediation.Metadata
	}
	if res.Verification != nil {
		meta["verification"] = res.Verification.Metadata
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
