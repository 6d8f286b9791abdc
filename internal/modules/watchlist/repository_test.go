package watchlist

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/database"
)

func newWatchlistRepo(t *testing.T) (*Repository, *database.DB) {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileStandard,
		Name:    "watchlist",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.Init())
	return repo, db
}

func TestRepository_UpsertCreatedFlag(t *testing.T) {
	repo, _ := newWatchlistRepo(t)

	created, err := repo.Upsert(Item{UserID: "u1", Ticker: "AAPL"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Upsert(Item{UserID: "u1", Ticker: "AAPL", IsFavourite: true})
	require.NoError(t, err)
	assert.False(t, created)

	items, err := repo.List("u1", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsFavourite)
}

func TestRepository_ListExcludes(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	for _, ticker := range []string{"AAPL", "MSFT", "NVDA"} {
		_, err := repo.Upsert(Item{UserID: "u1", Ticker: ticker})
		require.NoError(t, err)
	}

	items, err := repo.List("u1", map[string]bool{"MSFT": true})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "AAPL", items[0].Ticker)
	assert.Equal(t, "NVDA", items[1].Ticker)
}

func TestRepository_ListAllSpansUsers(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	_, err := repo.Upsert(Item{UserID: "u1", Ticker: "AAPL"})
	require.NoError(t, err)
	_, err = repo.Upsert(Item{UserID: "u2", Ticker: "AAPL"})
	require.NoError(t, err)

	items, err := repo.ListAll()
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRepository_BulkUpdate(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	_, err := repo.Upsert(Item{UserID: "u1", Ticker: "AAPL", Status: StatusPending})
	require.NoError(t, err)

	require.NoError(t, repo.BulkUpdate([]Item{{
		UserID:            "u1",
		Ticker:            "AAPL",
		Status:            StatusBuyReady,
		LastRefreshStatus: RefreshPass,
		VCPPass:           true,
	}}))

	items, err := repo.List("u1", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, StatusBuyReady, items[0].Status)
	assert.True(t, items[0].VCPPass)
}

func TestRepository_ArchiveMovesItems(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	_, err := repo.Upsert(Item{UserID: "u1", Ticker: "AAPL"})
	require.NoError(t, err)
	_, err = repo.Upsert(Item{UserID: "u1", Ticker: "MSFT"})
	require.NoError(t, err)

	archivedAt := time.Date(2026, 8, 24, 5, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Archive([]Item{
		{UserID: "u1", Ticker: "AAPL", LastRefreshStatus: RefreshFail},
	}, archivedAt))

	active, err := repo.List("u1", nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "MSFT", active[0].Ticker)

	archived, err := repo.ListArchived("u1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "AAPL", archived[0].Ticker)
	assert.Equal(t, archivedAt, archived[0].ArchivedAt)
}

func TestRepository_DeleteArchivedIdempotent(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	_, err := repo.Upsert(Item{UserID: "u1", Ticker: "AAPL"})
	require.NoError(t, err)
	require.NoError(t, repo.Archive([]Item{{UserID: "u1", Ticker: "AAPL"}}, time.Now()))

	require.NoError(t, repo.DeleteArchived("u1", "AAPL"))
	// Second delete of the same row is a no-op, not an error.
	require.NoError(t, repo.DeleteArchived("u1", "AAPL"))

	archived, err := repo.ListArchived("u1")
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestRepository_ArchiveTTLRegistered(t *testing.T) {
	repo, db := newWatchlistRepo(t)

	// Init registered the sweep window; an expired row disappears on sweep.
	old := time.Now().UTC().Add(-31 * 24 * time.Hour)
	_, err := repo.Upsert(Item{UserID: "u1", Ticker: "AAPL"})
	require.NoError(t, err)
	require.NoError(t, repo.Archive([]Item{{UserID: "u1", Ticker: "AAPL"}}, old))

	removed, err := db.SweepExpired("archived_watchlist_items")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
