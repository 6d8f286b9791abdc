package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/watchlist"
)

func newJobDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "watchlist",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestArchiveSweepJob(t *testing.T) {
	db := newJobDB(t)
	repo := watchlist.NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.Init())

	_, err := repo.Upsert(watchlist.Item{UserID: "u1", Ticker: "OLD"})
	require.NoError(t, err)
	require.NoError(t, repo.Archive(
		[]watchlist.Item{{UserID: "u1", Ticker: "OLD"}},
		time.Now().UTC().Add(-31*24*time.Hour)))

	job := NewArchiveSweepJob(db, zerolog.Nop())
	assert.Equal(t, "archive-sweep", job.Name())
	require.NoError(t, job.Run())

	archived, err := repo.ListArchived("u1")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestWatchlistRefreshJob_EmptyList(t *testing.T) {
	db := newJobDB(t)
	repo := watchlist.NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.Init())

	refresher := watchlist.NewRefresher(repo, nil, events.NewBus(zerolog.Nop()), zerolog.Nop())
	job := NewWatchlistRefreshJob(refresher, zerolog.Nop())
	assert.Equal(t, "watchlist-refresh", job.Name())
	require.NoError(t, job.Run())
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := New(zerolog.Nop())
	db := newJobDB(t)
	repo := watchlist.NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.Init())

	require.NoError(t, s.AddJob(ArchiveSweepSchedule, NewArchiveSweepJob(db, zerolog.Nop())))
	require.NoError(t, s.AddJob(WatchlistRefreshSchedule, NewArchiveSweepJob(db, zerolog.Nop())))

	s.Start()
	s.Stop()
}
