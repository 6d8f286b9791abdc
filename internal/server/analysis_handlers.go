package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/clients/finnhub"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/modules/trend"
	"github.com/aristath/screener/internal/modules/vcp"
)

// Fetch periods per operation: the trend template needs a full year of bars
// plus SMA-200 warmup, VCP detection works on the trailing year.
const (
	analyzePeriod = "1y"
	screenPeriod  = "2y"

	batchWorkers   = 8
	maxBatchSize   = 500
	defaultUserKey = "default"
)

// DataProvider is the market-data surface the handlers read from.
type DataProvider interface {
	GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest) (domain.PriceSeries, error)
	GetWatchlistMetrics(ctx context.Context, ticker string) (marketdata.Metrics, error)
	GetNews(ctx context.Context, ticker string) ([]finnhub.NewsArticle, error)
}

// AnalysisHandlers serves the single-ticker and batch screening endpoints.
type AnalysisHandlers struct {
	data DataProvider
	log  zerolog.Logger
}

// NewAnalysisHandlers creates the analysis handler set.
func NewAnalysisHandlers(data DataProvider, log zerolog.Logger) *AnalysisHandlers {
	return &AnalysisHandlers{
		data: data,
		log:  log.With().Str("component", "analysis_handlers").Logger(),
	}
}

// RegisterRoutes mounts the analysis routes.
func (h *AnalysisHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/analyze/{ticker}", h.HandleAnalyze)
	r.Get("/screen/{ticker}", h.HandleScreen)
	r.Post("/screen/batch", h.HandleScreenBatch)
	r.Post("/analyze/batch", h.HandleAnalyzeBatch)
	r.Post("/analyze/freshness/batch", h.HandleFreshnessBatch)
	r.Post("/data/return/batch", h.HandleReturnBatch)
	r.Post("/data/watchlist-metrics/batch", h.HandleMetricsBatch)
	r.Get("/data/news/{ticker}", h.HandleNews)
}

// pathTicker extracts and validates the ticker path parameter.
func pathTicker(r *http.Request) (string, error) {
	return domain.NormalizeTicker(chi.URLParam(r, "ticker"))
}

// HandleAnalyze handles GET /analyze/{ticker}?mode=full|fast.
func (h *AnalysisHandlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ticker, err := pathTicker(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}
	mode := vcp.ParseMode(r.URL.Query().Get("mode"))

	series, err := h.data.GetPrices(r.Context(), ticker, cache.CoverageRequest{Period: analyzePeriod})
	if err != nil {
		writeDataError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vcp.Analyze(ticker, series.Normalize(), mode))
}

// HandleScreen handles GET /screen/{ticker}.
func (h *AnalysisHandlers) HandleScreen(w http.ResponseWriter, r *http.Request) {
	ticker, err := pathTicker(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}

	series, err := h.data.GetPrices(r.Context(), ticker, cache.CoverageRequest{Period: screenPeriod})
	if err != nil {
		writeDataError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trend.Screen(ticker, series.Normalize().Closes()))
}

// batchRequest is the shared body shape of all batch endpoints.
type batchRequest struct {
	Tickers []string `json:"tickers"`
	Mode    string   `json:"mode,omitempty"`
}

// batchResponse maps each requested ticker to its result or its error.
type batchResponse struct {
	Results map[string]interface{} `json:"results"`
	Errors  map[string]string      `json:"errors,omitempty"`
}

// decodeBatch parses and validates a batch request body.
func decodeBatch(w http.ResponseWriter, r *http.Request) (batchRequest, bool) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	if len(req.Tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers list is empty", "")
		return req, false
	}
	if len(req.Tickers) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "tickers list too large", "")
		return req, false
	}
	return req, true
}

// runBatch fans the per-ticker function out over a bounded worker pool.
// Invalid tickers and per-ticker failures land in the errors map.
func (h *AnalysisHandlers) runBatch(ctx context.Context, tickers []string, fn func(ctx context.Context, ticker string) (interface{}, error)) batchResponse {
	resp := batchResponse{
		Results: make(map[string]interface{}, len(tickers)),
		Errors:  make(map[string]string),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, batchWorkers)

	for _, raw := range tickers {
		ticker, err := domain.NormalizeTicker(raw)
		if err != nil {
			mu.Lock()
			resp.Errors[raw] = err.Error()
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(ticker string) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := fn(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Errors[ticker] = err.Error()
				return
			}
			resp.Results[ticker] = result
		}(ticker)
	}
	wg.Wait()

	if len(resp.Errors) == 0 {
		resp.Errors = nil
	}
	return resp
}

// HandleScreenBatch handles POST /screen/batch.
func (h *AnalysisHandlers) HandleScreenBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}

	resp := h.runBatch(r.Context(), req.Tickers, func(ctx context.Context, ticker string) (interface{}, error) {
		series, err := h.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: screenPeriod})
		if err != nil {
			return nil, err
		}
		return trend.Screen(ticker, series.Normalize().Closes()), nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleAnalyzeBatch handles POST /analyze/batch.
func (h *AnalysisHandlers) HandleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	mode := vcp.ParseMode(req.Mode)

	resp := h.runBatch(r.Context(), req.Tickers, func(ctx context.Context, ticker string) (interface{}, error) {
		series, err := h.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: analyzePeriod})
		if err != nil {
			return nil, err
		}
		return vcp.Analyze(ticker, series.Normalize(), mode), nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleFreshnessBatch handles POST /analyze/freshness/batch.
func (h *AnalysisHandlers) HandleFreshnessBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}

	resp := h.runBatch(r.Context(), req.Tickers, func(ctx context.Context, ticker string) (interface{}, error) {
		series, err := h.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: analyzePeriod})
		if err != nil {
			return nil, err
		}
		return vcp.Analyze(ticker, series.Normalize(), vcp.ModeFast).Freshness, nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleReturnBatch handles POST /data/return/batch.
func (h *AnalysisHandlers) HandleReturnBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}

	resp := h.runBatch(r.Context(), req.Tickers, func(ctx context.Context, ticker string) (interface{}, error) {
		series, err := h.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: "3mo"})
		if err != nil {
			return nil, err
		}
		return map[string]float64{"daily_return": marketdata.DailyReturn(series.Normalize())}, nil
	})
	writeJSON(w, http.StatusOK, resp)
}

// HandleNews handles GET /data/news/{ticker}.
func (h *AnalysisHandlers) HandleNews(w http.ResponseWriter, r *http.Request) {
	ticker, err := pathTicker(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}

	articles, err := h.data.GetNews(r.Context(), ticker)
	if err != nil {
		writeDataError(w, err)
		return
	}
	if articles == nil {
		articles = []finnhub.NewsArticle{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":   ticker,
		"articles": articles,
		"count":    len(articles),
	})
}

// HandleMetricsBatch handles POST /data/watchlist-metrics/batch.
func (h *AnalysisHandlers) HandleMetricsBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBatch(w, r)
	if !ok {
		return
	}

	resp := h.runBatch(r.Context(), req.Tickers, func(ctx context.Context, ticker string) (interface{}, error) {
		return h.data.GetWatchlistMetrics(ctx, ticker)
	})
	writeJSON(w, http.StatusOK, resp)
}
