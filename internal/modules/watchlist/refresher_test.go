package watchlist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/marketdata"
)

type fakeSource struct {
	series     map[string]domain.PriceSeries
	metricsErr map[string]bool
}

func (f *fakeSource) GetPrices(_ context.Context, ticker string, _ cache.CoverageRequest) (domain.PriceSeries, error) {
	s, ok := f.series[ticker]
	if !ok {
		return nil, errors.New("upstream unavailable")
	}
	return s, nil
}

func (f *fakeSource) GetWatchlistMetrics(_ context.Context, ticker string) (marketdata.Metrics, error) {
	if f.metricsErr[ticker] {
		return marketdata.Metrics{}, errors.New("metrics unavailable")
	}
	return marketdata.Metrics{CurrentPrice: 100, VolVs50dRatio: 0.9, DayChangePct: 0.4}, nil
}

// uptrendSeries clears the trend template but forms no contraction pattern.
func uptrendSeries(n int) domain.PriceSeries {
	out := make(domain.PriceSeries, n)
	for i := range out {
		out[i] = domain.PriceBar{
			Date:   fmt.Sprintf("%04d-%02d-%02d", 2024+i/365, 1+(i/28)%12, 1+i%28),
			Close:  100 + 0.5*float64(i),
			Volume: 1000,
		}
	}
	return out
}

// sidewaysSeries fails the trend template outright.
func sidewaysSeries(n int) domain.PriceSeries {
	out := make(domain.PriceSeries, n)
	for i := range out {
		out[i] = domain.PriceBar{
			Date:   fmt.Sprintf("%04d-%02d-%02d", 2024+i/365, 1+(i/28)%12, 1+i%28),
			Close:  100,
			Volume: 1000,
		}
	}
	return out
}

func seedItems(t *testing.T, repo *Repository, items ...Item) {
	t.Helper()
	for _, item := range items {
		_, err := repo.Upsert(item)
		require.NoError(t, err)
	}
}

func itemByTicker(t *testing.T, items []Item, ticker string) Item {
	t.Helper()
	for _, item := range items {
		if item.Ticker == ticker {
			return item
		}
	}
	t.Fatalf("ticker %s not found", ticker)
	return Item{}
}

func TestRefresher_FunnelOutcomes(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	bus := events.NewBus(zerolog.Nop())

	seedItems(t, repo,
		Item{UserID: "u1", Ticker: "RISE"},
		Item{UserID: "u1", Ticker: "FLAT", IsFavourite: true},
		Item{UserID: "u1", Ticker: "GONE", IsFavourite: true},
	)

	source := &fakeSource{series: map[string]domain.PriceSeries{
		"RISE": uptrendSeries(300),
		"FLAT": sidewaysSeries(300),
	}}

	var emitted *events.WatchlistRefreshedData
	bus.Subscribe(events.WatchlistRefreshed, func(e *events.Event) {
		emitted, _ = e.GetTypedData().(*events.WatchlistRefreshedData)
	})

	r := NewRefresher(repo, source, bus, zerolog.Nop())
	summary, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.UpdatedItems)
	assert.Equal(t, 0, summary.ArchivedItems)
	assert.Equal(t, 1, summary.FailedItems)

	items, err := repo.List("u1", nil)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// A clean uptrend clears the screen but carries no contraction, so the
	// funnel stops at the VCP stage.
	rise := itemByTicker(t, items, "RISE")
	assert.Equal(t, RefreshFail, rise.LastRefreshStatus)
	assert.Equal(t, "vcp", rise.FailedStage)
	assert.Equal(t, StatusFailed, rise.Status)
	assert.Equal(t, 100.0, rise.CurrentPrice)
	require.NotNil(t, rise.LastRefreshAt)

	flat := itemByTicker(t, items, "FLAT")
	assert.Equal(t, RefreshFail, flat.LastRefreshStatus)
	assert.Equal(t, "screen", flat.FailedStage)

	// Missing price data is a downstream problem, not a screening verdict.
	gone := itemByTicker(t, items, "GONE")
	assert.Equal(t, RefreshUnknown, gone.LastRefreshStatus)
	assert.Equal(t, StatusPending, gone.Status)

	require.NotNil(t, emitted)
	assert.Equal(t, 3, emitted.UpdatedItems)
	assert.Equal(t, 1, emitted.FailedItems)
}

func TestRefresher_FailedNonFavouritesArchived(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	bus := events.NewBus(zerolog.Nop())

	seedItems(t, repo,
		Item{UserID: "u1", Ticker: "FLAT"},
		Item{UserID: "u1", Ticker: "KEEP", IsFavourite: true},
	)

	source := &fakeSource{series: map[string]domain.PriceSeries{
		"FLAT": sidewaysSeries(300),
		"KEEP": sidewaysSeries(300),
	}}

	r := NewRefresher(repo, source, bus, zerolog.Nop())
	summary, err := r.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.UpdatedItems)
	assert.Equal(t, 1, summary.ArchivedItems)

	active, err := repo.List("u1", nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "KEEP", active[0].Ticker)

	archived, err := repo.ListArchived("u1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "FLAT", archived[0].Ticker)
}

func TestRefresher_MetricsFailureMarksUnknown(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	bus := events.NewBus(zerolog.Nop())

	seedItems(t, repo, Item{UserID: "u1", Ticker: "FLAT"})

	source := &fakeSource{
		series:     map[string]domain.PriceSeries{"FLAT": sidewaysSeries(300)},
		metricsErr: map[string]bool{"FLAT": true},
	}

	r := NewRefresher(repo, source, bus, zerolog.Nop())
	summary, err := r.Refresh(context.Background())
	require.NoError(t, err)

	// The screen verdict stands; the metrics failure is still counted.
	assert.Equal(t, 1, summary.FailedItems)
	assert.Equal(t, 1, summary.ArchivedItems)
}

func TestRefresher_EmptyWatchlist(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	bus := events.NewBus(zerolog.Nop())

	r := NewRefresher(repo, &fakeSource{}, bus, zerolog.Nop())
	summary, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "watchlist is empty", summary.Message)
	assert.Zero(t, summary.UpdatedItems)
}

func TestRefresher_StalePassCleared(t *testing.T) {
	repo, _ := newWatchlistRepo(t)
	bus := events.NewBus(zerolog.Nop())

	// Previously enriched pass; the new cycle fails the screen and must not
	// leak the old signals forward.
	seedItems(t, repo, Item{
		UserID:            "u1",
		Ticker:            "FLAT",
		IsFavourite:       true,
		LastRefreshStatus: RefreshPass,
		VCPPass:           true,
		HasPivot:          true,
		PivotPrice:        150,
		Footprint:         "10D 15.0%",
	})

	source := &fakeSource{series: map[string]domain.PriceSeries{"FLAT": sidewaysSeries(300)}}
	r := NewRefresher(repo, source, bus, zerolog.Nop())
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	items, err := repo.List("u1", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].VCPPass)
	assert.False(t, items[0].HasPivot)
	assert.Zero(t, items[0].PivotPrice)
	assert.Empty(t, items[0].Footprint)
}
