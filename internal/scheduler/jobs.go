package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/modules/watchlist"
)

// WatchlistRefreshSchedule runs daily at 05:00 UTC, after the prior session's
// data has settled.
const WatchlistRefreshSchedule = "0 5 * * *"

// ArchiveSweepSchedule prunes expired archive rows hourly.
const ArchiveSweepSchedule = "@hourly"

// refreshTimeout bounds one full watchlist refresh cycle.
const refreshTimeout = 30 * time.Minute

// WatchlistRefreshJob runs the full watchlist refresh funnel.
type WatchlistRefreshJob struct {
	refresher *watchlist.Refresher
	log       zerolog.Logger
}

// NewWatchlistRefreshJob creates the scheduled watchlist refresh.
func NewWatchlistRefreshJob(refresher *watchlist.Refresher, log zerolog.Logger) *WatchlistRefreshJob {
	return &WatchlistRefreshJob{
		refresher: refresher,
		log:       log.With().Str("job", "watchlist_refresh").Logger(),
	}
}

// Name identifies the job in scheduler logs.
func (j *WatchlistRefreshJob) Name() string { return "watchlist-refresh" }

// Run executes one refresh cycle.
func (j *WatchlistRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	summary, err := j.refresher.Refresh(ctx)
	if err != nil {
		return err
	}
	j.log.Info().
		Int("updated", summary.UpdatedItems).
		Int("archived", summary.ArchivedItems).
		Int("failed", summary.FailedItems).
		Msg("Scheduled watchlist refresh finished")
	return nil
}

// ArchiveSweepJob deletes archived watchlist rows past their TTL.
type ArchiveSweepJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewArchiveSweepJob creates the hourly archive sweep.
func NewArchiveSweepJob(db *database.DB, log zerolog.Logger) *ArchiveSweepJob {
	return &ArchiveSweepJob{
		db:  db,
		log: log.With().Str("job", "archive_sweep").Logger(),
	}
}

// Name identifies the job in scheduler logs.
func (j *ArchiveSweepJob) Name() string { return "archive-sweep" }

// Run removes expired archive rows.
func (j *ArchiveSweepJob) Run() error {
	removed, err := j.db.SweepExpired("archived_watchlist_items")
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Swept expired archive rows")
	}
	return nil
}
