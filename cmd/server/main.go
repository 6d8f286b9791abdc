// Package main is the entry point for the screener service: a staged
// equities-screening pipeline (trend template, VCP detection, leadership
// checks) with a job orchestrator, a managed watchlist, and a market-health
// read path.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/clients/dataservice"
	"github.com/aristath/screener/internal/clients/finnhub"
	"github.com/aristath/screener/internal/clients/tickerservice"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/modules/market"
	"github.com/aristath/screener/internal/modules/screening"
	"github.com/aristath/screener/internal/modules/watchlist"
	"github.com/aristath/screener/internal/scheduler"
	"github.com/aristath/screener/internal/server"
	"github.com/aristath/screener/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting screener")

	// Databases: jobs.db carries screening jobs, results, the delisted
	// registry and market trend days; watchlist.db carries the watchlist
	// and its archive.
	jobsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "jobs.db"),
		Profile: database.ProfileStandard,
		Name:    "jobs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open jobs database")
	}
	defer jobsDB.Close()

	watchDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "watchlist.db"),
		Profile: database.ProfileStandard,
		Name:    "watchlist",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open watchlist database")
	}
	defer watchDB.Close()

	// Redis-backed typed caches. A dead Redis degrades to cache misses at
	// request time, so startup only fails on a malformed URL.
	store, err := cache.NewStore(cfg.CacheRedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure cache store")
	}
	defer store.Close()

	calendar := cache.NewCalendar()
	governor := cache.NewGovernor(cfg.FinnhubRateLimit, time.Minute)

	delisted := cache.NewDelistedRegistry(jobsDB.Conn(), log)
	if err := delisted.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize delisted registry")
	}

	// Outbound proxy pool for the provider client; the refresher re-reads
	// the configured list so proxies rotate without a restart.
	pool := finnhub.NewProxyPool(cfg.ProxyList, 30*time.Second)
	var proxyRefresher *finnhub.ProxyRefresher
	if len(cfg.ProxyList) > 0 && cfg.ProxyRefreshSeconds > 0 {
		proxyRefresher = finnhub.NewProxyRefresher(pool, reloadProxyList,
			time.Duration(cfg.ProxyRefreshSeconds)*time.Second, log)
		proxyRefresher.Start()
		defer proxyRefresher.Stop()
	}

	finnhubClient := finnhub.NewClient(cfg.FinnhubAPIKey, governor, pool, log)
	dataService := dataservice.NewClient(cfg.DataServiceURL, log)
	tickerService := tickerservice.NewClient(cfg.TickerServiceURL, log)

	provider := marketdata.NewProvider(store, calendar, delisted, finnhubClient, dataService, log)

	bus := events.NewBus(log)

	jobRepo := screening.NewJobRepository(jobsDB.Conn(), log)
	if err := jobRepo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize job repository")
	}

	watchRepo := watchlist.NewRepository(watchDB, log)
	if err := watchRepo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize watchlist repository")
	}

	trendRepo := market.NewTrendRepository(jobsDB.Conn(), log)
	if err := trendRepo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market trend repository")
	}

	orchestrator := screening.NewOrchestrator(jobRepo, bus, tickerService, provider, trendRepo, log)
	refresher := watchlist.NewRefresher(watchRepo, provider, bus, log)
	aggregator := market.NewAggregator(provider, provider, trendRepo, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(scheduler.WatchlistRefreshSchedule, scheduler.NewWatchlistRefreshJob(refresher, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register watchlist refresh job")
	}
	if err := sched.AddJob(scheduler.ArchiveSweepSchedule, scheduler.NewArchiveSweepJob(watchDB, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register archive sweep job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		DataDir:      cfg.DataDir,
		Data:         provider,
		JobRepo:      jobRepo,
		Orchestrator: orchestrator,
		Bus:          bus,
		Market:       aggregator,
		Watchlist:    watchRepo,
		Refresher:    refresher,
		Databases:    []*database.DB{jobsDB, watchDB},
		CacheHealth:  store,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Error().Err(err).Msg("HTTP server stopped")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Screener stopped")
}

// reloadProxyList re-reads PROXY_LIST (including a refreshed .env) so the
// proxy pool can pick up a rotated list while the process runs.
func reloadProxyList(context.Context) ([]string, error) {
	_ = godotenv.Overload()

	raw := os.Getenv("PROXY_LIST")
	if raw == "" {
		return nil, nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}
