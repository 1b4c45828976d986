package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"lionboard/internal/config"
	"lionboard/internal/contentsafety"
	"lionboard/internal/jobs"
	"lionboard/internal/middleware"
	"lionboard/internal/models"
	"lionboard/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "server-test-secret-0123456789abcdef0123"

type stubScreener struct {
	result *contentsafety.Result
	err    error
}

func (s *stubScreener) Configured() bool { return true }

func (s *stubScreener) Screen(context.Context, string) (*contentsafety.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &contentsafety.Result{}, nil
	}
	return s.result, nil
}

type testServer struct {
	srv      *Server
	app      *fiber.App
	db       *gorm.DB
	queue    *jobs.MemoryQueue
	screener *stubScreener
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	cfg := &config.Config{
		Env:               "test",
		Port:              "0",
		JWTSecret:         testSecret,
		DBDriver:          "sqlite",
		ScreeningAttempts: 3,
		ScreeningRetry:    0,
		ModeratorEmails:   "dean@campus.edu",
	}
	queue := jobs.NewMemoryQueue()
	screener := &stubScreener{}

	srv, err := NewServerWithDeps(cfg, db, nil, WithScreener(screener), WithQueue(queue))
	require.NoError(t, err)
	return &testServer{srv: srv, app: srv.App(), db: db, queue: queue, screener: screener}
}

func (ts *testServer) do(t *testing.T, method, path string, user *models.User, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, err := middleware.GenerateToken(testSecret, user.ID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func path(format string, id uint) string {
	return format + strconv.FormatUint(uint64(id), 10)
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"threadId", "thread ID"},
		{"answerId", "answer ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	resp := decode[map[string]any](t, body)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, map[string]any{"database": "ok", "redis": "disabled"}, resp["checks"])
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/threads", nil, map[string]string{"title": "T", "body": "B"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", decode[models.ErrorResponse](t, body).Code)
}

func TestCreateThreadAndResolveIdentity(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)

	status, body := ts.do(t, http.MethodPost, "/api/threads", author, map[string]any{
		"title": "Where is room 301?",
		"body":  "Asking for a friend",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	created := decode[struct {
		Thread    models.Thread `json:"thread"`
		Pseudonym string        `json:"pseudonym"`
	}](t, body)
	assert.NotZero(t, created.Thread.ID)
	assert.Regexp(t, `^Lion #[0-9A-Z]{4}$`, created.Pseudonym)
	assert.Equal(t, 1, ts.queue.Len())

	status, body = ts.do(t, http.MethodGet, path("/api/threads/", created.Thread.ID)+"/identity", author, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.Pseudonym, decode[map[string]any](t, body)["pseudonym"])

	status, _ = ts.do(t, http.MethodGet, "/api/threads/999/identity", author, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(t, http.MethodGet, "/api/threads/abc/identity", author, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateThreadValidation(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)

	status, body := ts.do(t, http.MethodPost, "/api/threads", author, map[string]any{"body": "no title"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title is required", decode[models.ErrorResponse](t, body).Error)
	assert.Zero(t, ts.queue.Len())
}

func TestScreeningJobRunsThroughWorker(t *testing.T) {
	ts := newTestServer(t)
	ts.screener.result = &contentsafety.Result{Flagged: true, Categories: map[string]bool{"harassment": true}}
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)
	mod := testutil.CreateUser(t, ts.db, models.RoleModerator)

	status, body := ts.do(t, http.MethodPost, "/api/threads", author, map[string]any{"title": "T", "body": "B"})
	require.Equal(t, http.StatusCreated, status, string(body))

	processed, err := ts.srv.worker.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	status, body = ts.do(t, http.MethodGet, "/api/moderation/threads", mod, nil)
	require.Equal(t, http.StatusOK, status)
	queue := decode[[]models.Thread](t, body)
	require.Len(t, queue, 1)
	assert.True(t, queue[0].AIFlagged)

	status, _ = ts.do(t, http.MethodGet, "/api/moderation/threads", author, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRedactionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)
	mod := testutil.CreateUser(t, ts.db, models.RoleModerator)
	thread := testutil.CreateThread(t, ts.db, author, "P", "Hello")

	status, _ := ts.do(t, http.MethodPatch, path("/api/moderation/threads/", thread.ID)+"/redact", author,
		map[string]string{"reason": "spam"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := ts.do(t, http.MethodPatch, path("/api/moderation/threads/", thread.ID)+"/redact", mod,
		map[string]string{"reason": "spam", "state": "partial"})
	require.Equal(t, http.StatusOK, status, string(body))
	redacted := decode[models.Thread](t, body)
	assert.Equal(t, models.PartialPlaceholder, redacted.Body)
	assert.Equal(t, models.RedactionPartial, redacted.RedactionState)

	status, body = ts.do(t, http.MethodPatch, path("/api/moderation/threads/", thread.ID)+"/redact", mod,
		map[string]string{"state": "visible"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid redaction state", decode[models.ErrorResponse](t, body).Error)

	status, body = ts.do(t, http.MethodPatch, path("/api/moderation/threads/", thread.ID)+"/unredact", mod, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "Hello", decode[models.Thread](t, body).Body)

	status, body = ts.do(t, http.MethodPatch, path("/api/moderation/threads/", thread.ID)+"/unredact", mod, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", decode[models.ErrorResponse](t, body).Code)

	status, body = ts.do(t, http.MethodGet, path("/api/moderation/threads/", thread.ID)+"/audit", mod, nil)
	require.Equal(t, http.StatusOK, status)
	entries := decode[[]models.AuditLog](t, body)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionPostUnredacted, entries[0].Action)
	assert.Equal(t, models.ActionPostRedacted, entries[1].Action)

	status, _ = ts.do(t, http.MethodGet, path("/api/moderation/threads/", thread.ID)+"/audit", author, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPatch, path("/api/moderation/comments/", 1)+"/redact", mod, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(t, http.MethodPatch, "/api/moderation/answers/999/redact", mod, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAllowlistedModerator(t *testing.T) {
	ts := newTestServer(t)
	dean := &models.User{Username: "dean", Email: "dean@campus.edu", Role: models.RoleStudent}
	require.NoError(t, ts.db.Create(dean).Error)
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)
	thread := testutil.CreateThread(t, ts.db, author, "P", "text")

	status, body := ts.do(t, http.MethodPatch, path("/api/moderation/threads/", thread.ID)+"/redact", dean, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, models.RedactedPlaceholder, decode[models.Thread](t, body).Body)
}

func TestRevealAndHideEndpoints(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)
	replier := testutil.CreateUser(t, ts.db, models.RoleStudent)
	mod := testutil.CreateUser(t, ts.db, models.RoleModerator)
	thread := testutil.CreateThread(t, ts.db, author, "T", "B")
	answer := testutil.CreateAnswer(t, ts.db, thread, replier, "reply")

	status, body := ts.do(t, http.MethodPost, path("/api/answers/", answer.ID)+"/reveal", replier, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, true, decode[map[string]any](t, body)["changed"])

	status, body = ts.do(t, http.MethodPost, path("/api/answers/", answer.ID)+"/reveal", replier, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, decode[map[string]any](t, body)["changed"])

	status, _ = ts.do(t, http.MethodPost, path("/api/threads/", thread.ID)+"/reveal", replier, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPost, path("/api/answers/", answer.ID)+"/hide", replier, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodGet, path("/api/moderation/answers/", answer.ID)+"/audit", mod, nil)
	require.Equal(t, http.StatusOK, status)
	entries := decode[[]models.AuditLog](t, body)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionIdentityHidden, entries[0].Action)
	assert.Equal(t, models.ActionIdentityRevealed, entries[1].Action)
}

func TestRepliesAndIdentityListing(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, models.RoleStudent)
	replier := testutil.CreateUser(t, ts.db, models.RoleStudent)
	mod := testutil.CreateUser(t, ts.db, models.RoleAdmin)
	thread := testutil.CreateThread(t, ts.db, author, "T", "B")

	status, body := ts.do(t, http.MethodPost, path("/api/threads/", thread.ID)+"/answers", replier, map[string]any{"body": "answer"})
	require.Equal(t, http.StatusCreated, status, string(body))
	answerPseudonym := decode[map[string]any](t, body)["pseudonym"]

	status, body = ts.do(t, http.MethodPost, path("/api/threads/", thread.ID)+"/comments", replier, map[string]any{"body": "comment"})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, answerPseudonym, decode[map[string]any](t, body)["pseudonym"])

	status, _ = ts.do(t, http.MethodGet, path("/api/threads/", thread.ID)+"/identities", replier, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ts.do(t, http.MethodGet, path("/api/threads/", thread.ID)+"/identities", mod, nil)
	require.Equal(t, http.StatusOK, status)
	identities := decode[[]models.ThreadIdentity](t, body)
	require.Len(t, identities, 1)
	assert.Equal(t, replier.ID, identities[0].UserID)
}

func TestNewServerWithDepsRequiresDB(t *testing.T) {
	_, err := NewServerWithDeps(&config.Config{}, nil, nil)
	assert.Error(t, err)
}
