package marketdata

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/clients/finnhub"
	"github.com/aristath/screener/internal/domain"
)

type memCache struct {
	prices map[string]domain.PriceSeries
	docs   map[string]interface{}
	puts   int
}

func newMemCache() *memCache {
	return &memCache{prices: map[string]domain.PriceSeries{}, docs: map[string]interface{}{}}
}

func (m *memCache) Get(_ context.Context, kind cache.Kind, ticker, params string, out interface{}) bool {
	v, ok := m.docs[string(kind)+":"+ticker+":"+params]
	if !ok {
		return false
	}
	switch dst := out.(type) {
	case *domain.CoreFinancials:
		*dst = v.(domain.CoreFinancials)
	case *[]string:
		*dst = v.([]string)
	case *[]finnhub.NewsArticle:
		*dst = v.([]finnhub.NewsArticle)
	}
	return true
}

func (m *memCache) Put(_ context.Context, kind cache.Kind, ticker, params string, v interface{}) error {
	m.docs[string(kind)+":"+ticker+":"+params] = v
	m.puts++
	return nil
}

func (m *memCache) GetPrices(_ context.Context, ticker string, req cache.CoverageRequest, _ *cache.Calendar) (domain.PriceSeries, bool) {
	s, ok := m.prices[ticker+":"+req.Key()]
	return s, ok
}

func (m *memCache) PutPrices(_ context.Context, ticker string, req cache.CoverageRequest, series domain.PriceSeries) error {
	m.prices[ticker+":"+req.Key()] = series
	m.puts++
	return nil
}

type memRegistry struct {
	delisted map[string]bool
}

func (r *memRegistry) IsDelisted(ticker string) bool { return r.delisted[ticker] }
func (r *memRegistry) MarkDelisted(ticker, _ string) error {
	r.delisted[ticker] = true
	return nil
}

type fakeUpstream struct {
	prices map[string]domain.PriceSeries
	fin    domain.CoreFinancials
	peers  []string
	calls  int
	err    error
}

func (f *fakeUpstream) GetPrices(_ context.Context, ticker string, _ cache.CoverageRequest) (domain.PriceSeries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.prices[ticker], nil
}

func (f *fakeUpstream) GetNews(context.Context, string) ([]finnhub.NewsArticle, error) {
	f.calls++
	return []finnhub.NewsArticle{{Headline: "hello"}}, nil
}

func (f *fakeUpstream) GetFinancials(context.Context, string) (domain.CoreFinancials, error) {
	f.calls++
	return f.fin, f.err
}

func (f *fakeUpstream) GetIndustryPeers(context.Context, string) ([]string, error) {
	f.calls++
	return f.peers, f.err
}

type fakeBreadth struct{}

func (fakeBreadth) GetBreadth(context.Context) (domain.Breadth, error) {
	return domain.Breadth{NewHighs: 1}, nil
}

func bars(closes ...float64) domain.PriceSeries {
	out := make(domain.PriceSeries, len(closes))
	for i, c := range closes {
		out[i] = domain.PriceBar{Date: fmt.Sprintf("2026-01-%02d", i+1), Close: c, Volume: 100}
	}
	return out
}

func newProvider(store *memCache, reg *memRegistry, up *fakeUpstream) *Provider {
	return NewProvider(store, cache.NewCalendar(), reg, up, fakeBreadth{}, zerolog.Nop())
}

func TestGetPrices_CacheFirst(t *testing.T) {
	store := newMemCache()
	reg := &memRegistry{delisted: map[string]bool{}}
	up := &fakeUpstream{prices: map[string]domain.PriceSeries{"AAPL": bars(100, 101)}}
	p := newProvider(store, reg, up)
	req := cache.CoverageRequest{Period: "1mo"}

	series, err := p.GetPrices(context.Background(), "AAPL", req)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, 1, up.calls)

	// Second lookup is served from the cache.
	_, err = p.GetPrices(context.Background(), "AAPL", req)
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestGetPrices_DelistedShortCircuits(t *testing.T) {
	store := newMemCache()
	reg := &memRegistry{delisted: map[string]bool{"DEADCO": true}}
	up := &fakeUpstream{}
	p := newProvider(store, reg, up)

	_, err := p.GetPrices(context.Background(), "DEADCO", cache.CoverageRequest{Period: "1mo"})
	assert.ErrorIs(t, err, ErrDelisted)
	assert.Equal(t, 0, up.calls)
	assert.Equal(t, 0, store.puts)
}

func TestGetPrices_EmptyResponseMarksDelisted(t *testing.T) {
	store := newMemCache()
	reg := &memRegistry{delisted: map[string]bool{}}
	up := &fakeUpstream{prices: map[string]domain.PriceSeries{}}
	p := newProvider(store, reg, up)

	_, err := p.GetPrices(context.Background(), "GONE", cache.CoverageRequest{Period: "1mo"})
	assert.ErrorIs(t, err, ErrNoData)
	assert.True(t, reg.delisted["GONE"])

	// Next lookup never reaches the wire.
	_, err = p.GetPrices(context.Background(), "GONE", cache.CoverageRequest{Period: "1mo"})
	assert.ErrorIs(t, err, ErrDelisted)
	assert.Equal(t, 1, up.calls)
}

func TestGetFinancials_CacheFirst(t *testing.T) {
	store := newMemCache()
	reg := &memRegistry{delisted: map[string]bool{}}
	up := &fakeUpstream{fin: domain.CoreFinancials{Ticker: "GRWT", MarketCap: 1e9}}
	p := newProvider(store, reg, up)

	fin, err := p.GetFinancials(context.Background(), "GRWT")
	require.NoError(t, err)
	assert.Equal(t, 1e9, fin.MarketCap)

	_, err = p.GetFinancials(context.Background(), "GRWT")
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestGetIndustryPeers_SharedByIndustry(t *testing.T) {
	store := newMemCache()
	reg := &memRegistry{delisted: map[string]bool{}}
	up := &fakeUpstream{peers: []string{"MSFT", "GOOGL"}}
	p := newProvider(store, reg, up)

	peers, err := p.GetIndustryPeers(context.Background(), "AAPL", "Technology")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "GOOGL"}, peers)

	// A different member of the same industry hits the shared entry.
	_, err = p.GetIndustryPeers(context.Background(), "MSFT", "Technology")
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
}

func TestGetPrices_UpstreamErrorPropagates(t *testing.T) {
	store := newMemCache()
	reg := &memRegistry{delisted: map[string]bool{}}
	up := &fakeUpstream{err: errors.New("boom")}
	p := newProvider(store, reg, up)

	_, err := p.GetPrices(context.Background(), "AAPL", cache.CoverageRequest{Period: "1mo"})
	require.Error(t, err)
	assert.False(t, reg.delisted["AAPL"])
}
