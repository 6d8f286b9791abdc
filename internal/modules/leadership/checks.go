// Package leadership evaluates financial-health, market-relative and
// industry-peer checks against three leadership profiles with two-tier pass
// logic.
package leadership

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/screener/internal/domain"
)

// Threshold constants for the individual checks.
const (
	// Market-cap band for the small-to-mid cap check.
	smallCapMin = 300e6
	midCapMax   = 10e9

	// Maximum IPO age for the recent-IPO check.
	ipoMaxAge = 5 * 365 * 24 * time.Hour

	// Float ceiling for the limited-float check.
	floatMaxShares = 50e6

	// Growth ladders (percent).
	standardGrowthPct = 25.0
	highGrowthPct     = 40.0

	// Industry leadership rank cutoff.
	leaderRankCutoff = 3

	// Trend window for the market-trend-impact check.
	trendWindow = 10
)

// CheckResult is the outcome of a single leadership check.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Input bundles everything the checks consume.
type Input struct {
	Financials domain.CoreFinancials
	Peers      []PeerRecord
	Trends     []domain.MarketTrendDay // most recent last
	AsOf       time.Time
}

// PeerRecord is one industry peer used by the industry-leader ranking.
type PeerRecord struct {
	Ticker       string  `json:"ticker"`
	TotalRevenue float64 `json:"totalRevenue"`
	MarketCap    float64 `json:"marketCap"`
}

// validatePeers enforces the peer payload contract. A violation yields an
// error so the check can fail structurally instead of panicking.
func validatePeers(peers []PeerRecord) error {
	if len(peers) == 0 {
		return fmt.Errorf("no peer data")
	}
	for i, peer := range peers {
		if peer.Ticker == "" {
			return fmt.Errorf("peer %d: missing ticker", i)
		}
		if peer.TotalRevenue < 0 || peer.MarketCap < 0 {
			return fmt.Errorf("peer %s: negative revenue or market cap", peer.Ticker)
		}
	}
	return nil
}

// quarterlyGrowthRates returns consecutive quarter-over-quarter revenue
// growth percentages, oldest first.
func quarterlyGrowthRates(income []domain.IncomeStatement) []float64 {
	var rates []float64
	for i := 1; i < len(income); i++ {
		prev := income[i-1].TotalRevenue
		if prev == 0 {
			continue
		}
		rates = append(rates, (income[i].TotalRevenue-prev)/prev*100)
	}
	return rates
}

func checkAcceleratingGrowth(in Input) CheckResult {
	rates := quarterlyGrowthRates(in.Financials.QuarterlyIncome)
	if len(rates) < 2 {
		return CheckResult{Name: "accelerating_growth", Passed: false, Message: "not enough quarterly history"}
	}

	for i := 1; i < len(rates); i++ {
		if rates[i] <= rates[i-1] {
			return CheckResult{Name: "accelerating_growth", Passed: false, Message: "revenue growth not accelerating"}
		}
	}
	return CheckResult{Name: "accelerating_growth", Passed: true, Message: "revenue growth accelerating quarter over quarter"}
}

func checkYoYEPSGrowth(in Input) CheckResult {
	annual := in.Financials.AnnualEarnings
	if len(annual) < 2 {
		return CheckResult{Name: "yoy_eps_growth", Passed: false, Message: "not enough annual history"}
	}

	prev := annual[len(annual)-2].EPS
	latest := annual[len(annual)-1].EPS
	if prev <= 0 {
		return CheckResult{Name: "yoy_eps_growth", Passed: latest > 0, Message: "prior-year EPS not positive"}
	}

	growth := (latest - prev) / prev * 100
	if growth >= highGrowthPct {
		return CheckResult{Name: "yoy_eps_growth", Passed: true, Message: fmt.Sprintf("EPS growth %.1f%% meets the high ladder", growth)}
	}
	if growth >= standardGrowthPct {
		return CheckResult{Name: "yoy_eps_growth", Passed: true, Message: fmt.Sprintf("EPS growth %.1f%% meets the standard ladder", growth)}
	}
	return CheckResult{Name: "yoy_eps_growth", Passed: false, Message: fmt.Sprintf("EPS growth %.1f%% below %.0f%%", growth, standardGrowthPct)}
}

func checkConsecutiveQuarterlyGrowth(in Input) CheckResult {
	quarters := in.Financials.QuarterlyEarnings
	if len(quarters) < 3 {
		return CheckResult{Name: "consecutive_quarterly_growth", Passed: false, Message: "not enough quarterly history"}
	}

	tail := quarters[len(quarters)-3:]
	for i := 1; i < len(tail); i++ {
		if tail[i].EPS <= tail[i-1].EPS {
			return CheckResult{Name: "consecutive_quarterly_growth", Passed: false, Message: "quarterly EPS not rising consecutively"}
		}
	}
	return CheckResult{Name: "consecutive_quarterly_growth", Passed: true, Message: "quarterly EPS rising for consecutive quarters"}
}

func checkPositiveRecentEarnings(in Input) CheckResult {
	quarters := in.Financials.QuarterlyEarnings
	if len(quarters) == 0 {
		return CheckResult{Name: "positive_recent_earnings", Passed: false, Message: "no quarterly earnings"}
	}
	if quarters[len(quarters)-1].EPS <= 0 {
		return CheckResult{Name: "positive_recent_earnings", Passed: false, Message: "latest quarter not profitable"}
	}
	return CheckResult{Name: "positive_recent_earnings", Passed: true, Message: "latest quarter profitable"}
}

func checkSmallToMidCap(in Input) CheckResult {
	cap := in.Financials.MarketCap
	if cap <= 0 {
		return CheckResult{Name: "small_to_mid_cap", Passed: false, Message: "market cap not available"}
	}
	if cap < smallCapMin || cap > midCapMax {
		return CheckResult{Name: "small_to_mid_cap", Passed: false, Message: "market cap outside the small-to-mid band"}
	}
	return CheckResult{Name: "small_to_mid_cap", Passed: true, Message: "market cap within the small-to-mid band"}
}

func checkRecentIPO(in Input) CheckResult {
	ipo := in.Financials.IPODate
	if ipo == nil || *ipo == "" {
		// Presence semantics differ across providers; missing means
		// unknown, never an error.
		return CheckResult{Name: "recent_ipo", Passed: false, Message: "IPO date not available"}
	}

	ipoDate, err := time.Parse("2006-01-02", *ipo)
	if err != nil {
		return CheckResult{Name: "recent_ipo", Passed: false, Message: "IPO date not available"}
	}

	if in.AsOf.Sub(ipoDate) > ipoMaxAge {
		return CheckResult{Name: "recent_ipo", Passed: false, Message: "IPO older than five years"}
	}
	return CheckResult{Name: "recent_ipo", Passed: true, Message: "recent IPO"}
}

func checkLimitedFloat(in Input) CheckResult {
	float := in.Financials.FloatShares
	if float == nil || *float <= 0 {
		return CheckResult{Name: "limited_float", Passed: false, Message: "float not available"}
	}
	if *float > floatMaxShares {
		return CheckResult{Name: "limited_float", Passed: false, Message: "float too large"}
	}
	return CheckResult{Name: "limited_float", Passed: true, Message: "limited float"}
}

func checkIndustryLeader(in Input) CheckResult {
	if err := validatePeers(in.Peers); err != nil {
		return CheckResult{Name: "industry_leader", Passed: false, Message: fmt.Sprintf("peer data invalid: %v", err)}
	}

	// Composite score: revenue plus market cap, ranked descending.
	type scored struct {
		ticker string
		score  float64
	}
	ranked := make([]scored, 0, len(in.Peers)+1)
	ranked = append(ranked, scored{
		ticker: in.Financials.Ticker,
		score:  sumComposite(in.Financials.MarketCap, latestRevenue(in.Financials)),
	})
	for _, peer := range in.Peers {
		ranked = append(ranked, scored{ticker: peer.Ticker, score: sumComposite(peer.MarketCap, peer.TotalRevenue)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	for rank, entry := range ranked {
		if entry.ticker == in.Financials.Ticker {
			if rank < leaderRankCutoff {
				return CheckResult{Name: "industry_leader", Passed: true, Message: fmt.Sprintf("ranked %d in industry", rank+1)}
			}
			return CheckResult{Name: "industry_leader", Passed: false, Message: fmt.Sprintf("ranked %d in industry", rank+1)}
		}
	}
	return CheckResult{Name: "industry_leader", Passed: false, Message: "ticker not present in peer ranking"}
}

func checkMarketTrendImpact(in Input) CheckResult {
	trends := in.Trends
	if len(trends) == 0 {
		return CheckResult{Name: "market_trend_impact", Passed: false, Message: "no market trend history"}
	}
	if len(trends) > trendWindow {
		trends = trends[len(trends)-trendWindow:]
	}

	bullish, bearish := 0, 0
	for _, day := range trends {
		switch day.Trend {
		case domain.TrendBullish:
			bullish++
		case domain.TrendBearish:
			bearish++
		}
	}

	if bullish >= bearish {
		return CheckResult{Name: "market_trend_impact", Passed: true, Message: "market trend supportive"}
	}
	return CheckResult{Name: "market_trend_impact", Passed: false, Message: "market trend hostile"}
}

func sumComposite(marketCap, revenue float64) float64 {
	return marketCap + revenue
}

func latestRevenue(fin domain.CoreFinancials) float64 {
	if len(fin.QuarterlyIncome) == 0 {
		return 0
	}
	return fin.QuarterlyIncome[len(fin.QuarterlyIncome)-1].TotalRevenue
}
