package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/modules/market"
	"github.com/aristath/screener/internal/modules/watchlist"
)

// MonitorHandlers serves the dashboard surface: market health and the
// watchlist.
type MonitorHandlers struct {
	market    *market.Aggregator
	watchlist *watchlist.Repository
	refresher *watchlist.Refresher
	log       zerolog.Logger
}

// NewMonitorHandlers creates the monitor handler set.
func NewMonitorHandlers(aggregator *market.Aggregator, repo *watchlist.Repository, refresher *watchlist.Refresher, log zerolog.Logger) *MonitorHandlers {
	return &MonitorHandlers{
		market:    aggregator,
		watchlist: repo,
		refresher: refresher,
		log:       log.With().Str("component", "monitor_handlers").Logger(),
	}
}

// RegisterRoutes mounts the monitor routes.
func (h *MonitorHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/monitor/market-health", h.HandleMarketHealth)
	r.Get("/monitor/watchlist", h.HandleWatchlist)
	r.Put("/monitor/watchlist/{ticker}", h.HandleWatchlistPut)
	r.Delete("/monitor/archive/{ticker}", h.HandleArchiveDelete)
	r.Post("/monitor/internal/watchlist/refresh-status", h.HandleRefreshStatus)
}

// HandleMarketHealth handles GET /monitor/market-health.
func (h *MonitorHandlers) HandleMarketHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.market.Compute(r.Context())
	if err != nil {
		writeDataError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// userID extracts the acting user; the single-tenant deployment uses a fixed
// default.
func userID(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return defaultUserKey
}

// HandleWatchlist handles GET /monitor/watchlist?exclude=A,B,C. Exclusions
// arrive URL-decoded, so dotted tickers like BRK.B work either escaped or
// plain.
func (h *MonitorHandlers) HandleWatchlist(w http.ResponseWriter, r *http.Request) {
	exclude := make(map[string]bool)
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			ticker, err := domain.NormalizeTicker(part)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid exclude ticker", err.Error())
				return
			}
			exclude[ticker] = true
		}
	}

	items, err := h.watchlist.List(userID(r), exclude)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load watchlist", err.Error())
		return
	}
	if items == nil {
		items = []watchlist.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// watchlistPutRequest is the optional body of the upsert endpoint.
type watchlistPutRequest struct {
	IsFavourite bool `json:"is_favourite"`
}

// HandleWatchlistPut handles PUT /monitor/watchlist/{ticker}: 201 when the
// item is new, 200 when it already existed.
func (h *MonitorHandlers) HandleWatchlistPut(w http.ResponseWriter, r *http.Request) {
	ticker, err := pathTicker(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}

	var req watchlistPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	item := watchlist.Item{
		UserID:            userID(r),
		Ticker:            ticker,
		IsFavourite:       req.IsFavourite,
		Status:            watchlist.StatusPending,
		LastRefreshStatus: watchlist.RefreshPending,
	}

	created, err := h.watchlist.Upsert(item)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save watchlist item", err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, item)
}

// HandleArchiveDelete handles DELETE /monitor/archive/{ticker}. Idempotent:
// deleting an absent row still returns 200.
func (h *MonitorHandlers) HandleArchiveDelete(w http.ResponseWriter, r *http.Request) {
	ticker, err := pathTicker(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}

	if err := h.watchlist.DeleteArchived(userID(r), ticker); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete archived item", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "archived item removed", "ticker": ticker})
}

// HandleRefreshStatus handles POST /monitor/internal/watchlist/refresh-status
// and runs a full refresh cycle synchronously.
func (h *MonitorHandlers) HandleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.refresher.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "watchlist refresh failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
