package service

import (
	"context"
	"sync"
	"testing"

	"lionboard/internal/contentsafety"
	"lionboard/internal/jobs"
	"lionboard/internal/models"
	"lionboard/internal/repository"
	"lionboard/internal/testutil"

	"gorm.io/gorm"
)

// fakeScreener is a contentsafety.Screener with scripted responses.
type fakeScreener struct {
	mu         sync.Mutex
	configured bool
	results    []*contentsafety.Result
	errs       []error
	calls      int
	inputs     []string
}

func (f *fakeScreener) Configured() bool { return f.configured }

func (f *fakeScreener) Screen(_ context.Context, text string) (*contentsafety.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.inputs = append(f.inputs, text)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return &contentsafety.Result{}, nil
}

func (f *fakeScreener) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// enqueuerStub records enqueued jobs or fails with err.
type enqueuerStub struct {
	jobs []*jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(_ context.Context, job *jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

type testEnv struct {
	db         *gorm.DB
	users      repository.UserRepository
	threads    repository.ThreadRepository
	answers    repository.AnswerRepository
	comments   repository.CommentRepository
	identities repository.ThreadIdentityRepository
	auditRepo  repository.AuditLogRepository
	roles      *RoleService
	audit      *AuditService
	identity   *IdentityService
	redaction  *RedactionService
	screening  *ScreeningService
	content    *ContentService
	screener   *fakeScreener
	queue      *enqueuerStub
}

func newTestEnv(t *testing.T, moderatorEmails ...string) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	env := &testEnv{
		db:         db,
		users:      repository.NewUserRepository(db),
		threads:    repository.NewThreadRepository(db),
		answers:    repository.NewAnswerRepository(db),
		comments:   repository.NewCommentRepository(db),
		identities: repository.NewThreadIdentityRepository(db),
		auditRepo:  repository.NewAuditLogRepository(db),
		screener:   &fakeScreener{configured: true},
		queue:      &enqueuerStub{},
	}
	env.roles = NewRoleService(env.users, moderatorEmails)
	env.audit = NewAuditService(env.auditRepo)
	env.identity = NewIdentityService(env.identities, env.users, env.threads, nil)
	env.redaction = NewRedactionService(db, env.threads, env.answers, env.users, env.audit, env.roles.CanModerate)
	env.screening = NewScreeningService(env.threads, env.screener, env.queue)
	env.content = NewContentService(db, env.threads, env.answers, env.comments, env.users,
		env.identity, env.audit, env.screening)
	return env
}

func (e *testEnv) user(t *testing.T, role models.Role) *models.User {
	t.Helper()
	return testutil.CreateUser(t, e.db, role)
}

func (e *testEnv) auditEntries(t *testing.T, target models.AuditTarget) []models.AuditLog {
	t.Helper()
	entries, err := e.audit.Query(context.Background(), target)
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	return entries
}

// sequenceTokens returns a TokenSource yielding tokens in order.
func sequenceTokens(tokens ...string) TokenSource {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		tok := tokens[i%len(tokens)]
		i++
		return tok, nil
	}
}
