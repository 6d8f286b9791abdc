// Package dataservice is the client for the internal market-data service,
// the canonical source of market breadth.
package dataservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/screener/internal/clients/upstream"
	"github.com/aristath/screener/internal/domain"
)

// Client for the data service. Requests pass through a politeness limiter
// so a batch fan-out cannot hammer the service.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a data-service client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		log:     log.With().Str("client", "dataservice").Logger(),
	}
}

// GetBreadth fetches the new-highs/new-lows counts. This endpoint is the
// canonical breadth source; there is no local calculator.
func (c *Client) GetBreadth(ctx context.Context) (domain.Breadth, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Breadth{}, err
	}

	var breadth domain.Breadth
	url := c.baseURL + "/market/breadth"
	if err := upstream.GetJSON(ctx, c.client, url, &breadth); err != nil {
		return domain.Breadth{}, fmt.Errorf("breadth fetch failed: %w", err)
	}
	return breadth, nil
}
