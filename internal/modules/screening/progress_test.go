package screening

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/events"
)

func newReporter(t *testing.T) (*Reporter, *JobRepository, *Job) {
	t.Helper()
	repo := newRepo(t)
	job := NewJob(Options{}, "test")
	require.NoError(t, repo.Create(job))
	return NewReporter(repo, events.NewBus(zerolog.Nop()), job.ID, zerolog.Nop()), repo, job
}

func TestReporter_ThrottlesInStageUpdates(t *testing.T) {
	reporter, repo, job := newReporter(t)

	reporter.Progress(3, 4, "vcp", "first")
	reporter.Progress(3, 4, "vcp", "suppressed")

	loaded, err := repo.Get(job.ID)
	require.NoError(t, err)
	require.Len(t, loaded.ProgressLog, 1)
	assert.Equal(t, "first", loaded.ProgressLog[0].Message)

	// Stage boundaries bypass the throttle.
	reporter.Stage(4, 4, "enrich", "boundary")
	loaded, err = repo.Get(job.ID)
	require.NoError(t, err)
	require.Len(t, loaded.ProgressLog, 2)
	assert.Equal(t, "boundary", loaded.ProgressLog[1].Message)
}

// One Reporter is shared by all stage workers; hammering it from a worker
// pool must neither race nor reorder the persisted log.
func TestReporter_ConcurrentProgress(t *testing.T) {
	reporter, repo, job := newReporter(t)
	reporter.minInterval = 0

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				reporter.Progress(3, 4, "vcp", "scanning")
			}
		}()
	}
	wg.Wait()

	loaded, err := repo.Get(job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, loaded.ProgressLog)

	for i := 1; i < len(loaded.ProgressLog); i++ {
		prev, err := time.Parse(time.RFC3339, loaded.ProgressLog[i-1].UpdatedAt)
		require.NoError(t, err)
		cur, err := time.Parse(time.RFC3339, loaded.ProgressLog[i].UpdatedAt)
		require.NoError(t, err)
		assert.False(t, cur.Before(prev))
	}
}
