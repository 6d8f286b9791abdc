package finnhub

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProxyPool rotates outbound requests across a set of HTTP proxies.
// With no proxies configured every call uses the direct fallback client.
// Swapping the list is safe while requests are in flight: existing clients
// finish on the old transports.
type ProxyPool struct {
	mu       sync.Mutex
	clients  []*http.Client
	fallback *http.Client
	timeout  time.Duration
	next     int
}

// NewProxyPool builds a pool from proxy URLs; invalid entries are skipped.
func NewProxyPool(proxyURLs []string, timeout time.Duration) *ProxyPool {
	p := &ProxyPool{
		fallback: &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
	p.SetProxies(proxyURLs)
	return p
}

// SetProxies replaces the proxy set.
func (p *ProxyPool) SetProxies(proxyURLs []string) {
	clients := make([]*http.Client, 0, len(proxyURLs))
	for _, raw := range proxyURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		clients = append(clients, &http.Client{
			Timeout:   p.timeout,
			Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		})
	}

	p.mu.Lock()
	p.clients = clients
	p.next = 0
	p.mu.Unlock()
}

// Client returns the next client in rotation, or the direct client when no
// proxies are configured.
func (p *ProxyPool) Client() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.clients) == 0 {
		return p.fallback
	}
	c := p.clients[p.next%len(p.clients)]
	p.next++
	return c
}

// Size returns the number of configured proxies.
func (p *ProxyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// ProxyRefresher periodically reloads the proxy list. It is an explicit
// lifecycle object: started from the composition root, stopped on shutdown.
type ProxyRefresher struct {
	pool     *ProxyPool
	fetch    func(ctx context.Context) ([]string, error)
	interval time.Duration
	log      zerolog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewProxyRefresher creates a refresher; Start begins the loop.
func NewProxyRefresher(pool *ProxyPool, fetch func(ctx context.Context) ([]string, error), interval time.Duration, log zerolog.Logger) *ProxyRefresher {
	return &ProxyRefresher{
		pool:     pool,
		fetch:    fetch,
		interval: interval,
		log:      log.With().Str("component", "proxy_refresher").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop. The first refresh runs immediately.
func (r *ProxyRefresher) Start() {
	go func() {
		defer close(r.done)

		r.refresh()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.refresh()
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit.
func (r *ProxyRefresher) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

// refresh applies one fetch; failures keep the current proxy set.
func (r *ProxyRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	proxies, err := r.fetch(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("Proxy refresh failed, keeping current set")
		return
	}
	r.pool.SetProxies(proxies)
	r.log.Debug().Int("proxies", len(proxies)).Msg("Proxy set refreshed")
}
