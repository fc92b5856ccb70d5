package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appsessions "github.com/rustgreen/backend/internal/application/sessions"
	"github.com/rustgreen/backend/internal/diff"
	anadom "github.com/rustgreen/backend/internal/domain/analysis"
	domain "github.com/rustgreen/backend/internal/domain/sessions"
	"github.com/rustgreen/backend/internal/middleware"
)

type Router struct {
	sessionsSvc *appsessions.Service
}

// NewRouter builds the HTTP surface. Middlewares and probe endpoints are wired
// in main; this router only owns the /v1 API.
func NewRouter(sessionsSvc *appsessions.Service, allowedOrigins []string) http.Handler {
	r := &Router{sessionsSvc: sessionsSvc}
	mux := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1/sessions", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleCreate))
		rt.Get("/", r.wrap(r.handleList))
		rt.Get("/{id}", r.wrap(r.handleGet))
		rt.Get("/{id}/status", r.wrap(r.handleStatus))
		rt.Patch("/{id}", r.wrap(r.handleUpdate))
		rt.Delete("/{id}", r.wrap(r.handleDelete))
		rt.Get("/{id}/analyses/{analysisID}/diff", r.wrap(r.handleDiff))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks validation failures so wrap can answer 400.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return badRequestError{err: err} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var br badRequestError
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "session not found", http.StatusNotFound)
			case errors.As(err, &br):
				http.Error(w, br.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/sessions
// Body: {"code": "<source>"} or {"orig_location": "<url>"}
// Answers 202 immediately; the analysis runs in the background worker.
func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Code         string `json:"code"`
		OrigLocation string `json:"orig_location"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("decoding request body: %w", err))
	}
	if body.OrigLocation != "" {
		if err := middleware.ValidateRemoteURL(body.OrigLocation); err != nil {
			return badRequest(err)
		}
	}

	sess, err := r.sessionsSvc.Create(req.Context(), appsessions.CreateSessionCommand{
		Code:         body.Code,
		OrigLocation: body.OrigLocation,
	})
	if err != nil {
		return badRequest(err)
	}
	middleware.IncrementSessionsCreated()
	return writeJSON(w, http.StatusAccepted, sess)
}

// GET /v1/sessions?limit=&offset=&status=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	limit = middleware.ValidateLimit(limit)

	status := domain.Status(strings.ToLower(req.URL.Query().Get("status")))
	if status != "" {
		switch status {
		case domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
		default:
			return badRequest(fmt.Errorf("unknown status filter: %s", status))
		}
	}

	list, err := r.sessionsSvc.List(req.Context(), limit, offset, status)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Session{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/sessions/{id}
// Returns the session row plus its persisted analyses and code blocks.
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}

	sess, results, err := r.sessionsSvc.GetWithResults(req.Context(), id)
	if err != nil {
		return err
	}
	if results == nil {
		results = []*anadom.Result{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"session":  sess,
		"analyses": results,
	})
}

// GET /v1/sessions/{id}/status
// Lightweight polling endpoint for clients waiting on a result.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}

	sess, err := r.sessionsSvc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"id":            sess.ID,
		"status":        sess.Status,
		"progress":      sess.Progress,
		"error_message": sess.ErrorMessage,
	})
}

// PATCH /v1/sessions/{id}
func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}

	var body struct {
		Status       *string `json:"status"`
		Progress     *int    `json:"progress"`
		ErrorMessage *string `json:"error_message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("decoding request body: %w", err))
	}

	cmd := appsessions.UpdateSessionCommand{
		Progress:     body.Progress,
		ErrorMessage: body.ErrorMessage,
	}
	if body.Status != nil {
		status := domain.Status(strings.ToLower(*body.Status))
		switch status {
		case domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
		default:
			return badRequest(fmt.Errorf("unknown status: %s", *body.Status))
		}
		cmd.Status = &status
	}
	if body.Progress != nil && (*body.Progress < 0 || *body.Progress > 100) {
		return badRequest(fmt.Errorf("progress must be between 0 and 100"))
	}

	sess, err := r.sessionsSvc.Update(req.Context(), id, cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sess)
}

// DELETE /v1/sessions/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}

	if err := r.sessionsSvc.Delete(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/sessions/{id}/analyses/{analysisID}/diff
// Renders the original block against the suggested replacement.
func (r *Router) handleDiff(w http.ResponseWriter, req *http.Request) error {
	id, err := sessionID(req)
	if err != nil {
		return err
	}
	analysisID := chi.URLParam(req, "analysisID")

	_, results, err := r.sessionsSvc.GetWithResults(req.Context(), id)
	if err != nil {
		return err
	}

	var match *anadom.Result
	for _, res := range results {
		if string(res.Analysis.ID) == analysisID {
			match = res
			break
		}
	}
	if match == nil {
		http.Error(w, "analysis not found", http.StatusNotFound)
		return nil
	}
	if match.Analysis.SuggestedReplacement == "" {
		return badRequest(fmt.Errorf("analysis %s has no suggested replacement to diff", analysisID))
	}

	d, err := diff.Generate(match.CodeBlock.RawCode, match.Analysis.SuggestedReplacement, "original", "fixed")
	if err != nil {
		return fmt.Errorf("generating diff: %w", err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"analysis_id":  match.Analysis.ID,
		"diff":         d,
		"side_by_side": diff.SideBySide(match.CodeBlock.RawCode, match.Analysis.SuggestedReplacement),
	})
}

func sessionID(req *http.Request) (domain.SessionID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return "", badRequest(err)
	}
	return domain.SessionID(id), nil
}
