// Package finnhub is the client for the Finnhub market-data provider:
// daily candles, company news, fundamentals, and industry peers. Every call
// goes through the sliding-window governor; the provider enforces its quota
// at the window boundary, not as a token bucket.
package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/clients/upstream"
	"github.com/aristath/screener/internal/domain"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// NewsArticle is one company-news item.
type NewsArticle struct {
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Client for the Finnhub API.
type Client struct {
	baseURL  string
	apiKey   string
	governor *cache.Governor
	pool     *ProxyPool
	log      zerolog.Logger
}

// NewClient creates a Finnhub client. pool may be nil, in which case all
// requests use a direct connection.
func NewClient(apiKey string, governor *cache.Governor, pool *ProxyPool, log zerolog.Logger) *Client {
	if pool == nil {
		pool = NewProxyPool(nil, 30*time.Second)
	}
	return &Client{
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		governor: governor,
		pool:     pool,
		log:      log.With().Str("client", "finnhub").Logger(),
	}
}

// get acquires a governor slot and performs one API call.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.governor.Acquire(ctx); err != nil {
		return err
	}

	params.Set("token", c.apiKey)
	full := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	return upstream.GetJSON(ctx, c.pool.Client(), full, out)
}

// candleResponse is the column-oriented candle payload.
type candleResponse struct {
	Status  string    `json:"s"`
	Times   []int64   `json:"t"`
	Opens   []float64 `json:"o"`
	Highs   []float64 `json:"h"`
	Lows    []float64 `json:"l"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
}

// GetPrices fetches daily candles covering the requested window and returns
// them as a normalized series. "no_data" yields an empty series, not an
// error: the caller decides whether that means delisted.
func (c *Client) GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest) (domain.PriceSeries, error) {
	to := time.Now().UTC()
	from, err := windowStart(req, to)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("resolution", "D")
	params.Set("from", fmt.Sprintf("%d", from.Unix()))
	params.Set("to", fmt.Sprintf("%d", to.Unix()))

	var resp candleResponse
	if err := c.get(ctx, "/stock/candle", params, &resp); err != nil {
		return nil, fmt.Errorf("candle fetch for %s failed: %w", ticker, err)
	}

	if resp.Status == "no_data" {
		return domain.PriceSeries{}, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: candle status %q for %s", upstream.ErrBadPayload, resp.Status, ticker)
	}
	n := len(resp.Times)
	if len(resp.Closes) != n || len(resp.Opens) != n || len(resp.Highs) != n ||
		len(resp.Lows) != n || len(resp.Volumes) != n {
		return nil, fmt.Errorf("%w: ragged candle columns for %s", upstream.ErrBadPayload, ticker)
	}

	series := make(domain.PriceSeries, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, domain.PriceBar{
			Date:   time.Unix(resp.Times[i], 0).UTC().Format("2006-01-02"),
			Open:   resp.Opens[i],
			High:   resp.Highs[i],
			Low:    resp.Lows[i],
			Close:  resp.Closes[i],
			Volume: resp.Volumes[i],
		})
	}
	return series.Normalize(), nil
}

// windowStart resolves the fetch start for a coverage request, padded so
// the cached series keeps satisfying the request for a while.
func windowStart(req cache.CoverageRequest, now time.Time) (time.Time, error) {
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid start date %q: %w", req.StartDate, err)
		}
		return t, nil
	}

	days := map[string]int{
		"1mo": 31, "3mo": 92, "6mo": 183, "1y": 365,
		"2y": 730, "5y": 1826, "10y": 3652,
	}[req.Period]
	if days == 0 {
		return time.Time{}, fmt.Errorf("unknown period %q", req.Period)
	}
	return now.AddDate(0, 0, -(days + 14)), nil
}

// GetNews fetches company news from the last 14 days.
func (c *Client) GetNews(ctx context.Context, ticker string) ([]NewsArticle, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -14)

	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var articles []NewsArticle
	if err := c.get(ctx, "/company-news", params, &articles); err != nil {
		return nil, fmt.Errorf("news fetch for %s failed: %w", ticker, err)
	}
	return articles, nil
}

// profileResponse is the company-profile payload. Market cap arrives in
// millions.
type profileResponse struct {
	MarketCapitalization float64 `json:"marketCapitalization"`
	ShareOutstanding     float64 `json:"shareOutstanding"`
	IPO                  string  `json:"ipo"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
}

type earningsRow struct {
	Period string  `json:"period"`
	Actual float64 `json:"actual"`
	Year   int     `json:"year"`
}

type financialsResponse struct {
	Financials []map[string]interface{} `json:"financials"`
}

// GetFinancials assembles the fundamentals bundle the leadership checks
// consume. Non-numeric income-statement fields are zero-substituted; a
// missing IPO date stays nil.
func (c *Client) GetFinancials(ctx context.Context, ticker string) (domain.CoreFinancials, error) {
	fin := domain.CoreFinancials{Ticker: ticker}

	var profile profileResponse
	params := url.Values{}
	params.Set("symbol", ticker)
	if err := c.get(ctx, "/stock/profile2", params, &profile); err != nil {
		return fin, fmt.Errorf("profile fetch for %s failed: %w", ticker, err)
	}
	fin.MarketCap = profile.MarketCapitalization * 1e6
	fin.Industry = profile.FinnhubIndustry
	if profile.ShareOutstanding > 0 {
		shares := profile.ShareOutstanding * 1e6
		fin.SharesOutstanding = &shares
		// Finnhub has no float figure; outstanding is the conservative proxy.
		fin.FloatShares = &shares
	}
	if profile.IPO != "" {
		ipo := profile.IPO
		fin.IPODate = &ipo
	}

	var quarterly []earningsRow
	params = url.Values{}
	params.Set("symbol", ticker)
	if err := c.get(ctx, "/stock/earnings", params, &quarterly); err != nil {
		return fin, fmt.Errorf("earnings fetch for %s failed: %w", ticker, err)
	}
	// Finnhub returns newest first; the checks expect chronological order.
	for i := len(quarterly) - 1; i >= 0; i-- {
		fin.QuarterlyEarnings = append(fin.QuarterlyEarnings, domain.EarningsPeriod{
			Period: quarterly[i].Period,
			EPS:    quarterly[i].Actual,
		})
	}
	fin.AnnualEarnings = annualFromQuarters(quarterly)

	params = url.Values{}
	params.Set("symbol", ticker)
	params.Set("statement", "ic")
	params.Set("freq", "quarterly")
	var income financialsResponse
	if err := c.get(ctx, "/stock/financials", params, &income); err != nil {
		return fin, fmt.Errorf("income fetch for %s failed: %w", ticker, err)
	}
	for i := len(income.Financials) - 1; i >= 0; i-- {
		row := income.Financials[i]
		fin.QuarterlyIncome = append(fin.QuarterlyIncome, domain.IncomeStatement{
			Period:       asString(row["period"]),
			TotalRevenue: asFloat(row["revenue"]),
			NetIncome:    asFloat(row["netIncome"]),
		})
	}

	return fin, nil
}

// annualFromQuarters sums quarterly actuals into per-year EPS, chronological.
func annualFromQuarters(rows []earningsRow) []domain.EarningsPeriod {
	byYear := map[int]float64{}
	years := []int{}
	for _, r := range rows {
		if r.Year == 0 {
			continue
		}
		if _, seen := byYear[r.Year]; !seen {
			years = append(years, r.Year)
		}
		byYear[r.Year] += r.Actual
	}
	for i := 0; i < len(years); i++ {
		for j := i + 1; j < len(years); j++ {
			if years[j] < years[i] {
				years[i], years[j] = years[j], years[i]
			}
		}
	}

	out := make([]domain.EarningsPeriod, 0, len(years))
	for _, y := range years {
		out = append(out, domain.EarningsPeriod{Period: fmt.Sprintf("%d", y), EPS: byYear[y]})
	}
	return out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asFloat zero-substitutes anything non-numeric.
func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

// GetIndustryPeers fetches the peer ticker list for a symbol.
func (c *Client) GetIndustryPeers(ctx context.Context, ticker string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", ticker)

	var peers []string
	if err := c.get(ctx, "/stock/peers", params, &peers); err != nil {
		return nil, fmt.Errorf("peers fetch for %s failed: %w", ticker, err)
	}

	out := peers[:0]
	for _, p := range peers {
		if !strings.EqualFold(p, ticker) {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out, nil
}
