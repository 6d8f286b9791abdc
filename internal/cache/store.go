// Package cache provides the data-access support layer: typed Redis caches
// with trading-calendar coverage checks, the delisted-ticker registry, and
// the provider rate governor.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/screener/internal/domain"
)

// Kind identifies a typed cache. Each kind has its own key prefix and TTL.
type Kind string

const (
	KindPrice      Kind = "price"
	KindNews       Kind = "news"
	KindFinancials Kind = "financials"
	KindIndustry   Kind = "industry"
)

// TTL returns the expiry for the kind. Expiry is enforced by Redis itself;
// readers treat absence as a miss.
func (k Kind) TTL() time.Duration {
	switch k {
	case KindPrice, KindFinancials:
		return 342800 * time.Second
	case KindNews:
		return 14400 * time.Second
	case KindIndustry:
		return 86400 * time.Second
	default:
		return time.Hour
	}
}

// entry is the msgpack envelope stored under every cache key.
type entry struct {
	Payload   msgpack.RawMessage `msgpack:"payload"`
	CreatedAt time.Time          `msgpack:"created_at"`
}

// Store is the Redis-backed cache used by the market-data provider.
// All read paths soft-fail: a Redis error is logged and reported as a miss
// so a degraded cache never blocks a request.
type Store struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewStore connects to Redis using a redis:// URL.
func NewStore(redisURL string, log zerolog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	return &Store{
		client: redis.NewClient(opts),
		log:    log.With().Str("component", "cache").Logger(),
	}, nil
}

// key builds the cache key for a kind. params is the request discriminator
// (price range, industry name); empty for single-document kinds.
func key(kind Kind, ticker, params string) string {
	if params == "" {
		return fmt.Sprintf("%s:%s", kind, ticker)
	}
	return fmt.Sprintf("%s:%s:%s", kind, ticker, params)
}

// Get loads a cached payload into out. Returns false on miss, decode
// failure, or any Redis error.
func (s *Store) Get(ctx context.Context, kind Kind, ticker, params string, out interface{}) bool {
	k := key(kind, ticker, params)

	raw, err := s.client.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", k).Msg("Cache read failed, treating as miss")
		}
		return false
	}

	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		s.log.Warn().Err(err).Str("key", k).Msg("Cache entry corrupt, treating as miss")
		return false
	}
	if err := msgpack.Unmarshal(e.Payload, out); err != nil {
		s.log.Warn().Err(err).Str("key", k).Msg("Cache payload corrupt, treating as miss")
		return false
	}
	return true
}

// Put writes a payload with the kind's TTL and createdAt = now.
func (s *Store) Put(ctx context.Context, kind Kind, ticker, params string, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	raw, err := msgpack.Marshal(entry{Payload: payload, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	k := key(kind, ticker, params)
	if err := s.client.Set(ctx, k, raw, kind.TTL()).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", k, err)
	}
	return nil
}

// GetPrices returns a cached price series for the range, but only when the
// series actually covers the requested window per the trading calendar.
// An insufficient series is a miss: the caller refetches and overwrites.
func (s *Store) GetPrices(ctx context.Context, ticker string, req CoverageRequest, cal *Calendar) (domain.PriceSeries, bool) {
	var series domain.PriceSeries
	if !s.Get(ctx, KindPrice, ticker, req.Key(), &series) {
		return nil, false
	}
	if !Covers(series, req, cal, time.Now().UTC()) {
		return nil, false
	}
	return series, true
}

// PutPrices caches a price series under the request's range key.
func (s *Store) PutPrices(ctx context.Context, ticker string, req CoverageRequest, series domain.PriceSeries) error {
	return s.Put(ctx, KindPrice, ticker, req.Key(), series)
}

// Health reports whether Redis answers a ping.
func (s *Store) Health(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
