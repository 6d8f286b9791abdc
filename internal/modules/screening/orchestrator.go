package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/cache"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/modules/leadership"
	"github.com/aristath/screener/internal/modules/trend"
	"github.com/aristath/screener/internal/modules/vcp"
)

// UniverseSource supplies the full ticker universe.
type UniverseSource interface {
	GetUniverse(ctx context.Context) ([]string, error)
}

// DataSource is the slice of the market-data provider the pipeline uses.
type DataSource interface {
	GetPrices(ctx context.Context, ticker string, req cache.CoverageRequest) (domain.PriceSeries, error)
	GetWatchlistMetrics(ctx context.Context, ticker string) (marketdata.Metrics, error)
	GetFinancials(ctx context.Context, ticker string) (domain.CoreFinancials, error)
	GetIndustryPeers(ctx context.Context, ticker, industry string) ([]string, error)
}

// TrendHistory supplies recent market-trend days for the leadership checks.
type TrendHistory interface {
	Recent(limit int) ([]domain.MarketTrendDay, error)
}

// Stage names; they appear in progress events and in error_step.
const (
	stageUniverse = "universe"
	stageScreen   = "screen"
	stageVCP      = "vcp"
	stageEnrich   = "enrich"

	stepTotal = 4
)

// Per-stage deadlines. The universe fetch is one call; the batch stages
// fan out over thousands of tickers.
var stageTimeouts = map[string]time.Duration{
	stageUniverse: 30 * time.Second,
	stageScreen:   600 * time.Second,
	stageVCP:      600 * time.Second,
	stageEnrich:   300 * time.Second,
}

const (
	defaultBatchSize = 50
	defaultWorkers   = 8
	screenPeriod     = "2y"

	// Peer fundamentals fetched for the industry-leader ranking.
	maxPeerLookups = 10
	// Trend days fed into the market-trend-impact check.
	trendHistoryDays = 10
)

// Orchestrator runs screening jobs.
type Orchestrator struct {
	repo     *JobRepository
	bus      *events.Bus
	universe UniverseSource
	data     DataSource
	trends   TrendHistory
	workers  int
	log      zerolog.Logger
}

// NewOrchestrator wires a screening orchestrator. trends may be nil; the
// market-trend-impact check then fails with "no market trend history".
func NewOrchestrator(repo *JobRepository, bus *events.Bus, universe UniverseSource, data DataSource, trends TrendHistory, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		bus:      bus,
		universe: universe,
		data:     data,
		trends:   trends,
		workers:  defaultWorkers,
		log:      log.With().Str("component", "screening").Logger(),
	}
}

// Start creates a pending job and launches the pipeline in the background.
func (o *Orchestrator) Start(opts Options, triggerSource string) (*Job, error) {
	job := NewJob(opts, triggerSource)
	if err := o.repo.Create(job); err != nil {
		return nil, err
	}

	go o.run(job)
	return job, nil
}

// candidate carries a final candidate through the enrich stage.
type candidate struct {
	Ticker     string                `json:"ticker"`
	Analysis   vcp.Analysis          `json:"analysis"`
	Trend      trend.Result          `json:"trend"`
	Metrics    marketdata.Metrics    `json:"metrics"`
	Leadership leadership.Evaluation `json:"leadership"`
}

func (o *Orchestrator) run(job *Job) {
	reporter := NewReporter(o.repo, o.bus, job.ID, o.log)
	started := time.Now().UTC()

	if err := o.repo.MarkRunning(job.ID, started); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to start job")
		return
	}

	fail := func(stage string, stepCurrent int, err error) {
		o.log.Error().Err(err).Str("job_id", job.ID).Str("stage", stage).Msg("Screening job failed")
		reporter.Fail(stepCurrent, stepTotal, stage, err.Error())
		if dbErr := o.repo.Fail(job.ID, err.Error(), stage, time.Now().UTC()); dbErr != nil {
			o.log.Error().Err(dbErr).Str("job_id", job.ID).Msg("Failed to persist job failure")
		}
	}

	// Stage 1: universe.
	reporter.Stage(1, stepTotal, stageUniverse, "Fetching ticker universe")
	tickers, err := o.fetchUniverse(job.Options)
	if err != nil {
		fail(stageUniverse, 1, err)
		return
	}

	// Stage 2: trend screen in batched chunks.
	reporter.Stage(2, stepTotal, stageScreen, fmt.Sprintf("Trend screening %d tickers", len(tickers)))
	trendResults, err := o.trendStage(reporter, tickers, job.Options)
	if err != nil {
		fail(stageScreen, 2, err)
		return
	}
	s1 := sortedKeys(trendResults)

	// Stage 3: fast VCP over the trend survivors.
	reporter.Stage(3, stepTotal, stageVCP, fmt.Sprintf("VCP analysis on %d survivors", len(s1)))
	analyses, err := o.vcpStage(reporter, s1)
	if err != nil {
		fail(stageVCP, 3, err)
		return
	}
	s2 := sortedKeys(analyses)

	// Stage 4: enrich the finalists and fan out.
	reporter.Stage(4, stepTotal, stageEnrich, fmt.Sprintf("Enriching %d candidates", len(s2)))
	candidates, err := o.enrichStage(s2, trendResults)
	if err != nil {
		fail(stageEnrich, 4, err)
		return
	}

	o.persistCompletion(job, reporter, tickers, s1, s2, candidates, started)
}

func (o *Orchestrator) fetchUniverse(opts Options) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stageTimeouts[stageUniverse])
	defer cancel()

	tickers, err := o.universe.GetUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("universe fetch failed: %w", err)
	}
	if opts.MaxTickers > 0 && len(tickers) > opts.MaxTickers {
		tickers = tickers[:opts.MaxTickers]
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("universe is empty")
	}
	return tickers, nil
}

// trendStage screens the universe in batches and returns the passing
// tickers with their rule results.
func (o *Orchestrator) trendStage(reporter *Reporter, tickers []string, opts Options) (map[string]trend.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stageTimeouts[stageScreen])
	defer cancel()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	period := opts.Period
	if period == "" {
		period = screenPeriod
	}

	survivors := make(map[string]trend.Result)
	var mu sync.Mutex

	for start := 0; start < len(tickers); start += batchSize {
		end := start + batchSize
		if end > len(tickers) {
			end = len(tickers)
		}

		err := o.forEach(ctx, tickers[start:end], func(ctx context.Context, ticker string) {
			series, err := o.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: period})
			if err != nil {
				o.logSkip(ticker, "screen", err)
				return
			}
			result := trend.Screen(ticker, series.Closes())
			if result.Passed {
				mu.Lock()
				survivors[ticker] = result
				mu.Unlock()
			}
		})
		if err != nil {
			return nil, err
		}

		reporter.Progress(2, stepTotal, stageScreen,
			fmt.Sprintf("Screened %d/%d tickers, %d passing", end, len(tickers), len(survivors)))
	}
	return survivors, nil
}

// vcpStage runs fast-mode VCP analysis and keeps the passing tickers.
func (o *Orchestrator) vcpStage(reporter *Reporter, tickers []string) (map[string]vcp.Analysis, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stageTimeouts[stageVCP])
	defer cancel()

	survivors := make(map[string]vcp.Analysis)
	var mu sync.Mutex
	var done int

	err := o.forEach(ctx, tickers, func(ctx context.Context, ticker string) {
		series, err := o.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: screenPeriod})
		if err != nil {
			o.logSkip(ticker, "vcp", err)
			return
		}
		analysis := vcp.Analyze(ticker, series.Normalize(), vcp.ModeFast)

		mu.Lock()
		done++
		if analysis.VCPPass {
			survivors[ticker] = analysis
		}
		progress := fmt.Sprintf("Analyzed %d/%d, %d passing", done, len(tickers), len(survivors))
		mu.Unlock()

		reporter.Progress(3, stepTotal, stageVCP, progress)
	})
	if err != nil {
		return nil, err
	}
	return survivors, nil
}

// enrichStage re-analyzes the finalists in full mode and attaches metrics.
func (o *Orchestrator) enrichStage(tickers []string, trendResults map[string]trend.Result) ([]candidate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stageTimeouts[stageEnrich])
	defer cancel()

	var mu sync.Mutex
	candidates := make([]candidate, 0, len(tickers))

	err := o.forEach(ctx, tickers, func(ctx context.Context, ticker string) {
		series, err := o.data.GetPrices(ctx, ticker, cache.CoverageRequest{Period: screenPeriod})
		if err != nil {
			o.logSkip(ticker, "enrich", err)
			return
		}
		analysis := vcp.Analyze(ticker, series.Normalize(), vcp.ModeFull)

		metrics, err := o.data.GetWatchlistMetrics(ctx, ticker)
		if err != nil {
			o.logSkip(ticker, "enrich", err)
			metrics = marketdata.Metrics{}
		}

		evaluation := o.evaluateLeadership(ctx, ticker)

		mu.Lock()
		candidates = append(candidates, candidate{
			Ticker:     ticker,
			Analysis:   analysis,
			Trend:      trendResults[ticker],
			Metrics:    metrics,
			Leadership: evaluation,
		})
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Ticker < candidates[j].Ticker })
	return candidates, nil
}

// evaluateLeadership runs the two-tier profile checks over whatever
// fundamentals, peer and market-trend data is available. Missing inputs
// degrade individual checks; they never fail the stage.
func (o *Orchestrator) evaluateLeadership(ctx context.Context, ticker string) leadership.Evaluation {
	in := leadership.Input{AsOf: time.Now().UTC()}

	fin, err := o.data.GetFinancials(ctx, ticker)
	if err != nil {
		o.logSkip(ticker, "enrich", err)
		return leadership.Evaluate(in)
	}
	in.Financials = fin

	if peers, err := o.data.GetIndustryPeers(ctx, ticker, fin.Industry); err != nil {
		o.logSkip(ticker, "enrich", err)
	} else {
		in.Peers = o.peerRecords(ctx, ticker, peers)
	}

	if o.trends != nil {
		if days, err := o.trends.Recent(trendHistoryDays); err != nil {
			o.logSkip(ticker, "enrich", err)
		} else {
			in.Trends = days
		}
	}

	return leadership.Evaluate(in)
}

// peerRecords resolves peer fundamentals for the industry-leader ranking,
// bounded so one crowded industry cannot dominate the enrich stage.
func (o *Orchestrator) peerRecords(ctx context.Context, ticker string, peers []string) []leadership.PeerRecord {
	records := make([]leadership.PeerRecord, 0, len(peers))
	for _, peer := range peers {
		if peer == ticker {
			continue
		}
		if len(records) >= maxPeerLookups {
			break
		}
		fin, err := o.data.GetFinancials(ctx, peer)
		if err != nil {
			o.logSkip(peer, "enrich", err)
			continue
		}
		revenue := 0.0
		if n := len(fin.QuarterlyIncome); n > 0 {
			revenue = fin.QuarterlyIncome[n-1].TotalRevenue
		}
		records = append(records, leadership.PeerRecord{
			Ticker:       peer,
			TotalRevenue: revenue,
			MarketCap:    fin.MarketCap,
		})
	}
	return records
}

// persistCompletion writes the fan-out records and the job summary. A
// detail-persist failure does not fail the job; the summary is
// authoritative.
func (o *Orchestrator) persistCompletion(job *Job, reporter *Reporter, universe, s1, s2 []string, candidates []candidate, started time.Time) {
	processedAt := time.Now().UTC()

	records := make([]CandidateRecord, 0, len(candidates))
	finalTickers := make([]string, 0, len(candidates))
	for _, c := range candidates {
		payload, err := json.Marshal(c)
		if err != nil {
			o.logSkip(c.Ticker, "persist", err)
			continue
		}
		records = append(records, CandidateRecord{Ticker: c.Ticker, Payload: payload})
		finalTickers = append(finalTickers, c.Ticker)
	}

	if err := o.repo.InsertResults(job.ID, processedAt, records); err != nil {
		o.log.Warn().Err(err).Str("job_id", job.ID).Msg("Detail persistence failed, summary remains authoritative")
	}

	results := ResultLists{TrendSurvivors: s1, VCPSurvivors: s2, Candidates: finalTickers}
	summary := Summary{
		Universe:        len(universe),
		TrendPassed:     len(s1),
		VCPPassed:       len(s2),
		Candidates:      len(finalTickers),
		DurationSeconds: time.Since(started).Seconds(),
	}

	if err := o.repo.Complete(job.ID, results, summary, processedAt); err != nil {
		o.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job completion")
	}
	reporter.Complete(stepTotal, fmt.Sprintf("Screening complete: %d candidates", len(finalTickers)))
}

// forEach fans work out over a bounded worker pool. It returns the context
// error when the stage deadline cuts the fan-out short.
func (o *Orchestrator) forEach(ctx context.Context, tickers []string, fn func(ctx context.Context, ticker string)) error {
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(ticker string) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, ticker)
		}(ticker)
	}
	wg.Wait()
	return ctx.Err()
}

// logSkip records a per-ticker failure; they never fail the batch.
func (o *Orchestrator) logSkip(ticker, stage string, err error) {
	o.log.Debug().Err(err).Str("ticker", ticker).Str("stage", stage).Msg("Skipping ticker")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
