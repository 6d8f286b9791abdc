package watchlist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/modules/trend"
	"github.com/aristath/screener/internal/modules/vcp"
)

// Funnel stage names recorded in failed_stage.
const (
	stageScreen  = "screen"
	stageVCP     = "vcp"
	stageMetrics = "data-metrics"
)

const (
	refreshPeriod  = "2y"
	refreshWorkers = 8
)

// DataSource is the market-data surface the refresh funnel uses.
type DataSource interface {
	GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest) (domain.PriceSeries, error)
	GetWatchlistMetrics(ctx context.Context, ticker string) (marketdata.Metrics, error)
}

// Refresher re-runs the screening funnel over every watchlist item:
// screen → vcp → freshness → data-metrics. Each stage shrinks the survivor
// set; metrics are fetched for all tickers so the UI fields stay populated.
type Refresher struct {
	repo *Repository
	data DataSource
	bus  *events.Bus
	log  zerolog.Logger
}

// NewRefresher wires the watchlist refresh engine.
func NewRefresher(repo *Repository, data DataSource, bus *events.Bus, log zerolog.Logger) *Refresher {
	return &Refresher{
		repo: repo,
		data: data,
		bus:  bus,
		log:  log.With().Str("component", "watchlist_refresh").Logger(),
	}
}

// Refresh runs one full cycle and commits the results: bulk update of the
// active set, bulk archive of failed non-favourites.
func (r *Refresher) Refresh(ctx context.Context) (RefreshSummary, error) {
	items, err := r.repo.ListAll()
	if err != nil {
		return RefreshSummary{}, err
	}
	if len(items) == 0 {
		return RefreshSummary{Message: "watchlist is empty"}, nil
	}

	now := time.Now().UTC()
	refreshed := make([]Item, len(items))
	var failed int64
	var mu sync.Mutex

	sem := make(chan struct{}, refreshWorkers)
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			item, downstreamErr := r.refreshOne(ctx, items[i], now)
			refreshed[i] = item
			if downstreamErr {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	active, archive := Partition(refreshed)

	if err := r.repo.BulkUpdate(active); err != nil {
		return RefreshSummary{}, err
	}
	if err := r.repo.Archive(archive, now); err != nil {
		return RefreshSummary{}, err
	}

	summary := RefreshSummary{
		Message:       "watchlist refresh completed",
		UpdatedItems:  len(active),
		ArchivedItems: len(archive),
		FailedItems:   int(failed),
	}

	r.bus.EmitTyped("watchlist", &events.WatchlistRefreshedData{
		UpdatedItems:  summary.UpdatedItems,
		ArchivedItems: summary.ArchivedItems,
		FailedItems:   summary.FailedItems,
	})
	r.log.Info().
		Int("updated", summary.UpdatedItems).
		Int("archived", summary.ArchivedItems).
		Int("failed", summary.FailedItems).
		Msg("Watchlist refresh committed")
	return summary, nil
}

// refreshOne pushes one item through the funnel. Downstream errors map to
// UNKNOWN (reported true); a stage the ticker does not pass maps to FAIL
// with failed_stage set.
func (r *Refresher) refreshOne(ctx context.Context, item Item, now time.Time) (Item, bool) {
	item = resetEnrichments(item)
	item.LastRefreshAt = &now

	series, err := r.data.GetPrices(ctx, item.Ticker, cache.CoverageRequest{Period: refreshPeriod})
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", item.Ticker).Msg("Price fetch failed during refresh")
		item.LastRefreshStatus = RefreshUnknown
		item.Status = DeriveStatus(item)
		return item, true
	}
	series = series.Normalize()

	downstream := r.attachMetrics(ctx, &item)

	// Stage 1: trend screen.
	if !trend.Screen(item.Ticker, series.Closes()).Passed {
		item.LastRefreshStatus = RefreshFail
		item.FailedStage = stageScreen
		item.Status = DeriveStatus(item)
		return item, downstream
	}

	// Stages 2-3: VCP and freshness signals.
	analysis := vcp.Analyze(item.Ticker, series, vcp.ModeFast)
	item.VCPPass = analysis.VCPPass
	item.HasPivot = analysis.Freshness.HasPivot
	item.IsPivotGood = analysis.Freshness.IsPivotGood
	item.IsAtPivot = analysis.Freshness.IsAtPivot
	item.HasPullbackSetup = analysis.Freshness.HasPullbackSetup
	item.PivotPrice = analysis.Freshness.PivotPrice
	item.PatternAgeDays = analysis.Freshness.PatternAgeDays
	item.PivotProximityPct = analysis.Freshness.PivotProximityPercent
	item.DaysSincePivot = analysis.Freshness.DaysSincePivot
	item.Footprint = analysis.Footprint

	if !analysis.VCPPass {
		item.LastRefreshStatus = RefreshFail
		item.FailedStage = stageVCP
		item.Status = DeriveStatus(item)
		return item, downstream
	}

	item.LastRefreshStatus = RefreshPass
	if downstream {
		// Funnel passed but the metrics fetch did not; without volume
		// context the status cannot be trusted.
		item.LastRefreshStatus = RefreshUnknown
		item.FailedStage = stageMetrics
	}
	item.Status = DeriveStatus(item)
	return item, downstream
}

// attachMetrics fetches the compact metrics; it runs for every ticker.
// Returns true on a downstream failure.
func (r *Refresher) attachMetrics(ctx context.Context, item *Item) bool {
	metrics, err := r.data.GetWatchlistMetrics(ctx, item.Ticker)
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", item.Ticker).Msg("Metrics fetch failed during refresh")
		return true
	}
	item.CurrentPrice = metrics.CurrentPrice
	item.VolLast = metrics.VolLast
	item.Vol50dAvg = metrics.Vol50dAvg
	item.DayChangePct = metrics.DayChangePct
	item.VolVs50dRatio = metrics.VolVs50dRatio
	return false
}

// resetEnrichments clears the funnel outputs so a stale pass never leaks
// into the new cycle.
func resetEnrichments(item Item) Item {
	item.FailedStage = ""
	item.VCPPass = false
	item.HasPivot = false
	item.IsPivotGood = false
	item.IsAtPivot = false
	item.HasPullbackSetup = false
	item.PivotPrice = 0
	item.PatternAgeDays = 0
	item.PivotProximityPct = 0
	item.DaysSincePivot = 0
	item.Footprint = ""
	return item
}
