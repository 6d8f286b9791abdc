// Package marketdata is the data-access facade: every price, news,
// fundamentals, or peer lookup goes through the delisted registry, the
// typed caches, and only then to the provider clients.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/clients/finnhub"
	"github.com/aristath/screener/internal/domain"
)

// ErrDelisted short-circuits lookups for tickers in the deny-list.
var ErrDelisted = errors.New("ticker is delisted")

// ErrNoData marks a ticker the provider has no price history for.
var ErrNoData = errors.New("no price data for ticker")

// PriceCache is the slice of the cache store the provider needs.
type PriceCache interface {
	Get(ctx context.Context, kind cache.Kind, ticker, params string, out interface{}) bool
	Put(ctx context.Context, kind cache.Kind, ticker, params string, v interface{}) error
	GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest, cal *cache.Calendar) (domain.PriceSeries, bool)
	PutPrices(ctx context.Context, ticker string, req cache.CoverageRequest, series domain.PriceSeries) error
}

// DelistedRegistry is the deny-list surface.
type DelistedRegistry interface {
	IsDelisted(ticker string) bool
	MarkDelisted(ticker, reason string) error
}

// Upstream is the provider-client surface.
type Upstream interface {
	GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest) (domain.PriceSeries, error)
	GetNews(ctx context.Context, ticker string) ([]finnhub.NewsArticle, error)
	GetFinancials(ctx context.Context, ticker string) (domain.CoreFinancials, error)
	GetIndustryPeers(ctx context.Context, ticker string) ([]string, error)
}

// BreadthClient supplies market breadth.
type BreadthClient interface {
	GetBreadth(ctx context.Context) (domain.Breadth, error)
}

// Provider is the facade handed to the screening modules.
type Provider struct {
	store    PriceCache
	cal      *cache.Calendar
	delisted DelistedRegistry
	client   Upstream
	breadth  BreadthClient
	log      zerolog.Logger
}

// NewProvider wires the data-access facade.
func NewProvider(store PriceCache, cal *cache.Calendar, delisted DelistedRegistry, client Upstream, breadth BreadthClient, log zerolog.Logger) *Provider {
	return &Provider{
		store:    store,
		cal:      cal,
		delisted: delisted,
		client:   client,
		breadth:  breadth,
		log:      log.With().Str("component", "marketdata").Logger(),
	}
}

// GetPrices returns the daily series for a ticker, cache-first. A delisted
// ticker never reaches the wire; an empty provider response marks the ticker
// delisted so the next caller short-circuits.
func (p *Provider) GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest) (domain.PriceSeries, error) {
	if p.delisted.IsDelisted(ticker) {
		return nil, fmt.Errorf("%w: %s", ErrDelisted, ticker)
	}

	if series, ok := p.store.GetPrices(ctx, ticker, req, p.cal); ok {
		return series, nil
	}

	series, err := p.client.GetPrices(ctx, ticker, req)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		if err := p.delisted.MarkDelisted(ticker, "provider returned no price data"); err != nil {
			p.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to record delisting")
		}
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}

	if err := p.store.PutPrices(ctx, ticker, req, series); err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Price cache write failed")
	}
	return series, nil
}

// GetIndexPrices satisfies the market-health price source; indices use a
// two-year window so the 252-day bands are always defined.
func (p *Provider) GetIndexPrices(ctx context.Context, ticker string) (domain.PriceSeries, error) {
	return p.GetPrices(ctx, ticker, cache.CoverageRequest{Period: "2y"})
}

// GetBreadth proxies the data-service breadth endpoint.
func (p *Provider) GetBreadth(ctx context.Context) (domain.Breadth, error) {
	return p.breadth.GetBreadth(ctx)
}

// GetNews returns recent company news, cache-first.
func (p *Provider) GetNews(ctx context.Context, ticker string) ([]finnhub.NewsArticle, error) {
	if p.delisted.IsDelisted(ticker) {
		return nil, fmt.Errorf("%w: %s", ErrDelisted, ticker)
	}

	var articles []finnhub.NewsArticle
	if p.store.Get(ctx, cache.KindNews, ticker, "", &articles) {
		return articles, nil
	}

	articles, err := p.client.GetNews(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, cache.KindNews, ticker, "", articles); err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("News cache write failed")
	}
	return articles, nil
}

// GetFinancials returns the fundamentals bundle, cache-first.
func (p *Provider) GetFinancials(ctx context.Context, ticker string) (domain.CoreFinancials, error) {
	if p.delisted.IsDelisted(ticker) {
		return domain.CoreFinancials{}, fmt.Errorf("%w: %s", ErrDelisted, ticker)
	}

	var fin domain.CoreFinancials
	if p.store.Get(ctx, cache.KindFinancials, ticker, "", &fin) {
		return fin, nil
	}

	fin, err := p.client.GetFinancials(ctx, ticker)
	if err != nil {
		return domain.CoreFinancials{}, err
	}
	if err := p.store.Put(ctx, cache.KindFinancials, ticker, "", fin); err != nil {
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Financials cache write failed")
	}
	return fin, nil
}

// GetIndustryPeers returns the peer tickers for an industry, keyed by the
// industry name so all members share one cache entry.
func (p *Provider) GetIndustryPeers(ctx context.Context, ticker, industry string) ([]string, error) {
	var peers []string
	if industry != "" && p.store.Get(ctx, cache.KindIndustry, industry, "", &peers) {
		return peers, nil
	}

	peers, err := p.client.GetIndustryPeers(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if industry != "" {
		if err := p.store.Put(ctx, cache.KindIndustry, industry, "", peers); err != nil {
			p.log.Warn().Err(err).Str("industry", industry).Msg("Industry cache write failed")
		}
	}
	return peers, nil
}

// GetWatchlistMetrics fetches a short price window and derives the compact
// UI metrics for one ticker.
func (p *Provider) GetWatchlistMetrics(ctx context.Context, ticker string) (Metrics, error) {
	series, err := p.GetPrices(ctx, ticker, cache.CoverageRequest{Period: "3mo"})
	if err != nil {
		return Metrics{}, err
	}
	return ComputeMetrics(series), nil
}
