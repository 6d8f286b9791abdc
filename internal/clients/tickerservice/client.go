// Package tickerservice is the client for the external ticker service that
// supplies the screening universe.
package tickerservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clients/upstream"
	"github.com/aristath/screener/internal/domain"
)

// Client for the ticker service.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a ticker-service client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("client", "tickerservice").Logger(),
	}
}

// GetUniverse fetches the full list of screenable ticker symbols. Symbols
// that fail validation are dropped with a log line; they never fail the
// fetch.
func (c *Client) GetUniverse(ctx context.Context) ([]string, error) {
	var payload struct {
		Tickers []string `json:"tickers"`
	}
	url := c.baseURL + "/tickers"
	if err := upstream.GetJSON(ctx, c.client, url, &payload); err != nil {
		return nil, fmt.Errorf("universe fetch failed: %w", err)
	}

	out := make([]string, 0, len(payload.Tickers))
	for _, raw := range payload.Tickers {
		ticker, err := domain.NormalizeTicker(raw)
		if err != nil {
			c.log.Warn().Str("ticker", raw).Msg("Dropping invalid universe ticker")
			continue
		}
		out = append(out, ticker)
	}
	return out, nil
}
