package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsessions "github.com/rustgreen/backend/internal/application/sessions"
	anadom "github.com/rustgreen/backend/internal/domain/analysis"
	domain "github.com/rustgreen/backend/internal/domain/sessions"
	"github.com/rustgreen/backend/internal/infra/db/memory"
	"github.com/rustgreen/backend/internal/infra/storage"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingQueue struct{ ids []domain.SessionID }

func (q *recordingQueue) Enqueue(id domain.SessionID) { q.ids = append(q.ids, id) }

type routerFixture struct {
	handler  http.Handler
	sessions *memory.SessionStore
	results  *memory.ResultStore
	queue    *recordingQueue
	svc      *appsessions.Service
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	src, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &routerFixture{
		sessions: memory.NewSessionStore(),
		results:  memory.NewResultStore(),
		queue:    &recordingQueue{},
	}
	f.svc = &appsessions.Service{
		Repo:    f.sessions,
		Results: f.results,
		Source:  src,
		Queue:   f.queue,
		Clock:   fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.handler = NewRouter(f.svc, nil)
	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateSession_AcceptedWithCode(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", map[string]string{
		"code": "fn main() { unsafe { do_it(); } }",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, domain.StatusPending, sess.Status)
	assert.Equal(t, 0, sess.Progress)
	require.Len(t, f.queue.ids, 1)
	assert.Equal(t, sess.ID, f.queue.ids[0])
}

func TestCreateSession_RejectsCodeAndLocationTogether(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", map[string]string{
		"code":          "fn main() {}",
		"orig_location": "https://example.com/repo.git",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.ids)
}

func TestCreateSession_RejectsEmptyBody(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_RejectsOversizedCode(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", map[string]string{
		"code": strings.Repeat("x", appsessions.MaxCodeChars+1),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSession_RejectsLoopbackLocation(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions", map[string]string{
		"orig_location": "http://127.0.0.1/internal.git",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/sessions/00000000-0000-0000-0000-000000000000", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession_RejectsMalformedID(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/sessions/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession_ReturnsSessionWithAnalyses(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() { unsafe { ptr::read(p); } }")
	seedResult(t, f, string(id))

	rec := f.do(t, http.MethodGet, "/v1/sessions/"+string(id), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Session  domain.Session   `json:"session"`
		Analyses []*anadom.Result `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id, body.Session.ID)
	require.Len(t, body.Analyses, 1)
	assert.Equal(t, "CWE-120", body.Analyses[0].Analysis.CWEID)
}

func TestSessionStatus_Polling(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() {}")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/sessions/%s/status", id), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(id), body["id"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, float64(0), body["progress"])
}

func TestListSessions_FiltersByStatus(t *testing.T) {
	f := newRouterFixture(t)
	createSession(t, f, "fn a() {}")
	id := createSession(t, f, "fn b() {}")

	status := domain.StatusCompleted
	_, err := f.svc.Update(context.Background(), id, appsessions.UpdateSessionCommand{Status: &status})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/sessions?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = f.do(t, http.MethodGet, "/v1/sessions?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSession_TerminalStatusStampsCompletion(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() {}")

	rec := f.do(t, http.MethodPatch, "/v1/sessions/"+string(id), map[string]any{
		"status":   "failed",
		"progress": 100,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, domain.StatusFailed, sess.Status)
	require.NotNil(t, sess.CompletedAt)
}

func TestUpdateSession_RejectsOutOfRangeProgress(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() {}")

	rec := f.do(t, http.MethodPatch, "/v1/sessions/"+string(id), map[string]any{
		"progress": 250,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession_RemovesRowAndResults(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() {}")
	seedResult(t, f, string(id))

	rec := f.do(t, http.MethodDelete, "/v1/sessions/"+string(id), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/sessions/"+string(id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	n, err := f.results.CountBySession(context.Background(), string(id))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiff_RendersSuggestedReplacement(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() {}")
	analysisID := seedResult(t, f, string(id))

	rec := f.do(t, http.MethodGet,
		fmt.Sprintf("/v1/sessions/%s/analyses/%s/diff", id, analysisID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		AnalysisID string `json:"analysis_id"`
		Diff       struct {
			DiffText   string `json:"diff_text"`
			HasChanges bool   `json:"has_changes"`
		} `json:"diff"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, analysisID, body.AnalysisID)
	assert.True(t, body.Diff.HasChanges)
	assert.Contains(t, body.Diff.DiffText, "-")
	assert.Contains(t, body.Diff.DiffText, "+")
}

func TestDiff_UnknownAnalysisIs404(t *testing.T) {
	f := newRouterFixture(t)
	id := createSession(t, f, "fn main() {}")

	rec := f.do(t, http.MethodGet,
		fmt.Sprintf("/v1/sessions/%s/analyses/missing/diff", id), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func createSession(t *testing.T, f *routerFixture, code string) domain.SessionID {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/sessions", map[string]string{"code": code})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess.ID
}

func seedResult(t *testing.T, f *routerFixture, sessionID string) string {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	block := &anadom.CodeBlock{
		ID:        "block-1",
		RawCode:   "let p = buf.as_ptr();\nunsafe { ptr::read(p) }",
		LineStart: 1,
		LineEnd:   2,
		CreatedAt: now,
	}
	a := &anadom.Analysis{
		ID:                   "analysis-1",
		SessionID:            sessionID,
		CodeBlockID:          block.ID,
		Classification:       anadom.Replaceable,
		SuggestedReplacement: "let v = buf.to_vec();",
		CWEID:                "CWE-120",
		RiskLevel:            anadom.RiskHigh,
		ConfidenceScore:      0.9,
		CreatedAt:            now,
	}
	require.NoError(t, f.results.SaveResult(context.Background(), block, a))
	return string(a.ID)
}
