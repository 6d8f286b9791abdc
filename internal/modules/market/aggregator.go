package market

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
)

// PriceSource supplies index price histories.
type PriceSource interface {
	GetIndexPrices(ctx context.Context, ticker string) (domain.PriceSeries, error)
}

// BreadthSource supplies the market breadth counts.
type BreadthSource interface {
	GetBreadth(ctx context.Context) (domain.Breadth, error)
}

// Health is the aggregate market-health response.
type Health struct {
	Stage           string         `json:"stage"`
	Indices         []IndexHealth  `json:"indices"`
	CorrectionDepth float64        `json:"correction_depth"`
	Breadth         domain.Breadth `json:"breadth"`
	AsOf            string         `json:"as_of"`
}

// Aggregator is the market-health read path.
type Aggregator struct {
	prices  PriceSource
	breadth BreadthSource
	trends  *TrendRepository
	log     zerolog.Logger
}

// NewAggregator creates a market-health aggregator.
func NewAggregator(prices PriceSource, breadth BreadthSource, trends *TrendRepository, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		prices:  prices,
		breadth: breadth,
		trends:  trends,
		log:     log.With().Str("component", "market_health").Logger(),
	}
}

// Compute evaluates the three tracked indices and assembles the aggregate
// health. Breadth failures degrade to zeros; index fetch failures are fatal
// because the stage would be meaningless without all three.
func (a *Aggregator) Compute(ctx context.Context) (*Health, error) {
	tickers := []string{domain.IndexSP500, domain.IndexDow, domain.IndexNasdaq}

	indices := make([]IndexHealth, 0, len(tickers))
	var sp500 IndexHealth
	for _, ticker := range tickers {
		series, err := a.prices.GetIndexPrices(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("failed to load index prices for %s: %w", ticker, err)
		}

		health := EvaluateIndex(ticker, series.Normalize())
		indices = append(indices, health)
		if ticker == domain.IndexSP500 {
			sp500 = health
		}
	}

	breadth, err := a.breadth.GetBreadth(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("Breadth unavailable, returning zeros")
		breadth = domain.Breadth{}
	}

	health := &Health{
		Stage:           OverallStage(indices),
		Indices:         indices,
		CorrectionDepth: CorrectionDepth(sp500),
		Breadth:         breadth,
		AsOf:            time.Now().UTC().Format(time.RFC3339),
	}

	// Record today's trend label; failures must not break the read path.
	if a.trends != nil {
		day := domain.MarketTrendDay{
			Date:  time.Now().UTC().Format("2006-01-02"),
			Trend: health.Stage,
		}
		if err := a.trends.Upsert(day); err != nil {
			a.log.Warn().Err(err).Msg("Failed to record market trend day")
		}
	}

	return health, nil
}
