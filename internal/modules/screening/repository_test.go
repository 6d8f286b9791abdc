package screening

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
)

func newRepo(t *testing.T) *JobRepository {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "jobs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewJobRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.Init())
	return repo
}

func snap(jobID string, step int, msg string) events.JobProgressData {
	return events.JobProgressData{
		JobID:       jobID,
		JobType:     JobTypeScreening,
		Status:      string(StatusRunning),
		StepCurrent: step,
		StepTotal:   4,
		StepName:    "screen",
		Message:     msg,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

func TestJobLifecycle(t *testing.T) {
	repo := newRepo(t)
	job := NewJob(Options{BatchSize: 25}, "api")

	require.NoError(t, repo.Create(job))

	loaded, err := repo.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, loaded.Status)
	assert.Equal(t, 25, loaded.Options.BatchSize)
	assert.Equal(t, "api", loaded.TriggerSource)

	started := time.Now().UTC()
	require.NoError(t, repo.MarkRunning(job.ID, started))

	loaded, err = repo.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, loaded.Status)
	require.NotNil(t, loaded.StartedAt)

	results := ResultLists{TrendSurvivors: []string{"AAPL"}, VCPSurvivors: []string{"AAPL"}, Candidates: []string{"AAPL"}}
	summary := Summary{Universe: 100, TrendPassed: 1, VCPPassed: 1, Candidates: 1}
	require.NoError(t, repo.Complete(job.ID, results, summary, time.Now().UTC()))

	loaded, err = repo.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)
	assert.Equal(t, []string{"AAPL"}, loaded.Results.Candidates)
	assert.Equal(t, 100, loaded.ResultSummary.Universe)
}

func TestMarkRunning_RequiresPending(t *testing.T) {
	repo := newRepo(t)
	job := NewJob(Options{}, "")
	require.NoError(t, repo.Create(job))
	require.NoError(t, repo.MarkRunning(job.ID, time.Now().UTC()))

	// Already running: the transition is not repeatable.
	assert.Error(t, repo.MarkRunning(job.ID, time.Now().UTC()))
}

func TestFail_RecordsErrorStep(t *testing.T) {
	repo := newRepo(t)
	job := NewJob(Options{}, "")
	require.NoError(t, repo.Create(job))
	require.NoError(t, repo.MarkRunning(job.ID, time.Now().UTC()))
	require.NoError(t, repo.Fail(job.ID, "universe fetch failed", "universe", time.Now().UTC()))

	loaded, err := repo.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, loaded.Status)
	assert.Equal(t, "universe", loaded.ErrorStep)
	assert.Equal(t, "universe fetch failed", loaded.ErrorMessage)
}

func TestAppendProgress_CapsLogAt100(t *testing.T) {
	repo := newRepo(t)
	job := NewJob(Options{}, "")
	require.NoError(t, repo.Create(job))

	for i := 0; i < 120; i++ {
		require.NoError(t, repo.AppendProgress(job.ID, snap(job.ID, i, fmt.Sprintf("update %d", i))))
	}

	loaded, err := repo.Get(job.ID)
	require.NoError(t, err)
	require.Len(t, loaded.ProgressLog, 100)
	// Tail-capped: the first 20 entries were dropped.
	assert.Equal(t, "update 20", loaded.ProgressLog[0].Message)
	assert.Equal(t, "update 119", loaded.ProgressLog[99].Message)
	require.NotNil(t, loaded.ProgressSnapshot)
	assert.Equal(t, "update 119", loaded.ProgressSnapshot.Message)
}

func TestAppendProgress_UnknownJob(t *testing.T) {
	repo := newRepo(t)
	err := repo.AppendProgress(NewJobID(), snap("x", 1, "hello"))
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestGet_UnknownJob(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Get(NewJobID())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestHistory_Pagination(t *testing.T) {
	repo := newRepo(t)

	for i := 0; i < 5; i++ {
		job := NewJob(Options{}, "")
		job.CreatedAt = time.Date(2026, 8, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, repo.Create(job))
	}

	page, err := repo.History(2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC), page[0].CreatedAt)

	page, err = repo.History(2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), page[0].CreatedAt)
}

func TestInsertResults_SharedProcessedAt(t *testing.T) {
	repo := newRepo(t)
	job := NewJob(Options{}, "")
	require.NoError(t, repo.Create(job))

	processedAt := time.Now().UTC()
	records := []CandidateRecord{
		{Ticker: "AAPL", Payload: []byte(`{"ticker":"AAPL"}`)},
		{Ticker: "MSFT", Payload: []byte(`{"ticker":"MSFT"}`)},
	}
	require.NoError(t, repo.InsertResults(job.ID, processedAt, records))

	loaded, err := repo.ResultsForJob(job.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "AAPL", loaded[0].Ticker)
}

func TestValidateJobID(t *testing.T) {
	assert.NoError(t, ValidateJobID(NewJobID()))
	assert.NoError(t, ValidateJobID("20260824-120000-a1b2c3"))
	assert.Error(t, ValidateJobID("not-a-job-id"))
	assert.Error(t, ValidateJobID(""))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusRunning))
	assert.True(t, StatusRunning.CanTransitionTo(StatusSuccess))
	assert.True(t, StatusRunning.CanTransitionTo(StatusFailed))
	assert.False(t, StatusSuccess.CanTransitionTo(StatusRunning))
	assert.False(t, StatusFailed.CanTransitionTo(StatusRunning))
	assert.False(t, StatusPending.CanTransitionTo(StatusSuccess))
}
