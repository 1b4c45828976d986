package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"lionboard/internal/contentsafety"
	"lionboard/internal/jobs"
	"lionboard/internal/models"
	"lionboard/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreeningService_FlagsThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)
	thread := testutil.CreateThread(t, env.db, author, "Selling answers", "dm me")

	env.screener.results = []*contentsafety.Result{{
		Flagged:        true,
		Categories:     map[string]bool{"harassment": true, "spam": false},
		CategoryScores: map[string]float64{"harassment": 0.91},
	}}

	outcome, err := env.screening.ScreenThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFlagged, outcome)
	assert.Equal(t, []string{"Selling answers\n\ndm me"}, env.screener.inputs)

	stored, err := env.threads.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.True(t, stored.AIFlagged)
	assert.Equal(t, map[string]bool{"harassment": true, "spam": false}, stored.AICategories)
	assert.InDelta(t, 0.91, stored.AIScores["harassment"], 1e-9)
	assert.NotNil(t, stored.ScreenedAt)
	assert.Equal(t, "dm me", stored.Body)
	assert.Equal(t, models.RedactionVisible, stored.State())

	outcome, err = env.screening.ScreenThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFlagged, outcome)
	assert.Equal(t, 1, env.screener.Calls())
}

func TestScreeningService_CleanThreadIsLeftUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)
	thread := testutil.CreateThread(t, env.db, author, "Study group", "Library at 6?")

	before, err := env.threads.GetByID(ctx, thread.ID)
	require.NoError(t, err)

	env.screener.results = []*contentsafety.Result{{
		Flagged:        false,
		Categories:     map[string]bool{"harassment": false},
		CategoryScores: map[string]float64{"harassment": 0.01},
	}}
	outcome, err := env.screening.ScreenThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClean, outcome)
	assert.Equal(t, 1, env.screener.Calls())

	stored, err := env.threads.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.False(t, stored.AIFlagged)
	assert.Empty(t, stored.AICategories)
	assert.Empty(t, stored.AIScores)
	assert.Nil(t, stored.ScreenedAt)
	assert.True(t, before.UpdatedAt.Equal(stored.UpdatedAt), "clean screening must not write the row")
}

func TestScreeningService_SkipsWithoutCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)
	thread := testutil.CreateThread(t, env.db, author, "T", "B")

	env.screener.configured = false
	outcome, err := env.screening.ScreenThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, env.screener.Calls())

	env.screener.configured = true
	env.screener.errs = []error{contentsafety.ErrMissingCredential}
	outcome, err = env.screening.ScreenThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	stored, err := env.threads.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.False(t, stored.AIFlagged)
	assert.Nil(t, stored.ScreenedAt)
}

func TestScreeningService_ExternalFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)
	thread := testutil.CreateThread(t, env.db, author, "T", "B")

	env.screener.errs = []error{errors.New("connection refused")}
	outcome, err := env.screening.ScreenThread(ctx, thread.ID)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, jobs.IsRetryable(err))

	var extErr *contentsafety.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "screen", extErr.Op)

	stored, err := env.threads.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.False(t, stored.AIFlagged)
	assert.Nil(t, stored.ScreenedAt)
}

func TestScreeningService_MissingThreadIsNotAnError(t *testing.T) {
	env := newTestEnv(t)

	outcome, err := env.screening.ScreenThread(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, outcome)
	assert.Zero(t, env.screener.Calls())
}

func TestScreeningService_WorkerRetriesThenGivesUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)

	queue := jobs.NewMemoryQueue()
	worker := jobs.NewWorker(queue, jobs.WorkerOptions{
		Name:   "screening",
		Policy: jobs.RetryPolicy{MaxAttempts: 3},
	})
	screener := &fakeScreener{configured: true, errs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	screening := NewScreeningService(env.threads, screener, worker)
	worker.Handle(ScreenThreadJob, screening.HandleJob)
	content := NewContentService(env.db, env.threads, env.answers, env.comments, env.users,
		env.identity, env.audit, screening)

	created, err := content.CreateThread(ctx, CreateThreadInput{UserID: author.ID, Title: "T", Body: "B"})
	require.NoError(t, err)
	require.NotNil(t, created.Thread)
	assert.Equal(t, 1, queue.Len())

	for i := 0; i < 3; i++ {
		processed, err := worker.ProcessNext(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
	}
	processed, err := worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed)

	assert.Equal(t, 3, screener.Calls())
	dead := queue.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].Attempts)

	stored, err := env.threads.GetByID(ctx, created.Thread.ID)
	require.NoError(t, err)
	assert.False(t, stored.AIFlagged)
	assert.Nil(t, stored.ScreenedAt)
}

func TestScreeningService_HandleJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, models.RoleStudent)
	thread := testutil.CreateThread(t, env.db, author, "T", "B")
	env.screener.results = []*contentsafety.Result{{Flagged: true}}

	job, err := jobs.NewJob(ScreenThreadJob, map[string]uint{"thread_id": thread.ID})
	require.NoError(t, err)
	require.NoError(t, env.screening.HandleJob(ctx, job))

	stored, err := env.threads.GetByID(ctx, thread.ID)
	require.NoError(t, err)
	assert.True(t, stored.AIFlagged)

	empty := &jobs.Job{Kind: ScreenThreadJob, Payload: json.RawMessage(`{}`)}
	err = env.screening.HandleJob(ctx, empty)
	assert.True(t, models.HasCode(err, models.CodeValidation))
	assert.False(t, jobs.IsRetryable(err))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "flagged", OutcomeFlagged.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
