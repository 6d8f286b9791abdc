package leadership

import (
	"testing"
	"time"

	"github.com/aristath/screener/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrString(s string) *string  { return &s }

func asOf() time.Time {
	return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
}

// strongInput passes every check in all three profiles.
func strongInput() Input {
	return Input{
		Financials: domain.CoreFinancials{
			Ticker:      "GRWT",
			MarketCap:   2e9,
			FloatShares: ptrFloat(30e6),
			IPODate:     ptrString("2024-05-01"),
			AnnualEarnings: []domain.EarningsPeriod{
				{Period: "2024", EPS: 1.0},
				{Period: "2025", EPS: 1.5},
			},
			QuarterlyEarnings: []domain.EarningsPeriod{
				{Period: "2025-Q4", EPS: 0.2},
				{Period: "2026-Q1", EPS: 0.3},
				{Period: "2026-Q2", EPS: 0.5},
			},
			QuarterlyIncome: []domain.IncomeStatement{
				{Period: "2025-Q3", TotalRevenue: 100e6, NetIncome: 10e6},
				{Period: "2025-Q4", TotalRevenue: 110e6, NetIncome: 12e6},
				{Period: "2026-Q1", TotalRevenue: 125e6, NetIncome: 15e6},
				{Period: "2026-Q2", TotalRevenue: 150e6, NetIncome: 20e6},
			},
		},
		Peers: []PeerRecord{
			{Ticker: "PEER1", TotalRevenue: 50e6, MarketCap: 1e9},
			{Ticker: "PEER2", TotalRevenue: 40e6, MarketCap: 0.8e9},
		},
		Trends: []domain.MarketTrendDay{
			{Date: "2026-08-20", Trend: domain.TrendBullish},
			{Date: "2026-08-21", Trend: domain.TrendBullish},
			{Date: "2026-08-24", Trend: domain.TrendNeutral},
		},
		AsOf: asOf(),
	}
}

func TestEvaluate_FullQualification(t *testing.T) {
	eval := Evaluate(strongInput())

	assert.True(t, eval.Passed)
	assert.Contains(t, eval.Message, "qualifies as")
	require.Len(t, eval.Profiles, 3)
	for _, pr := range eval.Profiles {
		assert.True(t, pr.FullyPassed, pr.Name)
	}
}

func TestEvaluate_SupportingMissing(t *testing.T) {
	in := strongInput()
	// High-Potential Setup loses every check.
	in.Financials.MarketCap = 50e9
	in.Financials.IPODate = nil
	in.Financials.FloatShares = nil
	// Market cap change also sinks small_to_mid_cap, but Market Favourite
	// still has passing checks.

	eval := Evaluate(in)
	assert.False(t, eval.Passed)
	assert.Contains(t, eval.Message, "lacks supporting strength")
	assert.Contains(t, eval.Message, ProfileHighPotentialSetup)
}

func TestEvaluate_NoPrimary(t *testing.T) {
	in := Input{
		Financials: domain.CoreFinancials{Ticker: "WEAK", MarketCap: 1e9},
		AsOf:       asOf(),
	}

	eval := Evaluate(in)
	assert.False(t, eval.Passed)
	assert.Equal(t, "no profile fully passed", eval.Message)
}

func TestCheckRecentIPO_MissingDateIsGraceful(t *testing.T) {
	in := Input{Financials: domain.CoreFinancials{}, AsOf: asOf()}

	result := checkRecentIPO(in)
	assert.False(t, result.Passed)
	assert.Equal(t, "IPO date not available", result.Message)

	in.Financials.IPODate = ptrString("not-a-date")
	result = checkRecentIPO(in)
	assert.False(t, result.Passed)
	assert.Equal(t, "IPO date not available", result.Message)
}

func TestCheckRecentIPO_Old(t *testing.T) {
	in := Input{
		Financials: domain.CoreFinancials{IPODate: ptrString("2015-01-01")},
		AsOf:       asOf(),
	}

	result := checkRecentIPO(in)
	assert.False(t, result.Passed)
}

func TestCheckIndustryLeader_RankCutoff(t *testing.T) {
	in := strongInput()

	result := checkIndustryLeader(in)
	assert.True(t, result.Passed)

	// Push three larger peers ahead of the ticker.
	in.Peers = []PeerRecord{
		{Ticker: "BIG1", TotalRevenue: 1e9, MarketCap: 100e9},
		{Ticker: "BIG2", TotalRevenue: 1e9, MarketCap: 90e9},
		{Ticker: "BIG3", TotalRevenue: 1e9, MarketCap: 80e9},
	}
	result = checkIndustryLeader(in)
	assert.False(t, result.Passed)
}

func TestCheckIndustryLeader_InvalidPeerContract(t *testing.T) {
	in := strongInput()
	in.Peers = []PeerRecord{{Ticker: "", TotalRevenue: 1, MarketCap: 1}}

	result := checkIndustryLeader(in)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "peer data invalid")

	in.Peers = []PeerRecord{{Ticker: "NEG", TotalRevenue: -5, MarketCap: 1}}
	result = checkIndustryLeader(in)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "peer data invalid")
}

func TestCheckAcceleratingGrowth(t *testing.T) {
	in := strongInput()
	assert.True(t, checkAcceleratingGrowth(in).Passed)

	// Decelerating revenue growth fails.
	in.Financials.QuarterlyIncome = []domain.IncomeStatement{
		{TotalRevenue: 100e6},
		{TotalRevenue: 130e6},
		{TotalRevenue: 140e6},
	}
	assert.False(t, checkAcceleratingGrowth(in).Passed)
}

func TestCheckYoYEPSGrowth_Ladders(t *testing.T) {
	in := strongInput()
	in.Financials.AnnualEarnings = []domain.EarningsPeriod{{EPS: 1.0}, {EPS: 1.3}}
	result := checkYoYEPSGrowth(in)
	assert.True(t, result.Passed)
	assert.Contains(t, result.Message, "standard ladder")

	in.Financials.AnnualEarnings = []domain.EarningsPeriod{{EPS: 1.0}, {EPS: 1.5}}
	result = checkYoYEPSGrowth(in)
	assert.True(t, result.Passed)
	assert.Contains(t, result.Message, "high ladder")

	in.Financials.AnnualEarnings = []domain.EarningsPeriod{{EPS: 1.0}, {EPS: 1.1}}
	assert.False(t, checkYoYEPSGrowth(in).Passed)
}

func TestCheckMarketTrendImpact(t *testing.T) {
	in := strongInput()
	assert.True(t, checkMarketTrendImpact(in).Passed)

	in.Trends = []domain.MarketTrendDay{
		{Trend: domain.TrendBearish},
		{Trend: domain.TrendBearish},
		{Trend: domain.TrendBullish},
	}
	assert.False(t, checkMarketTrendImpact(in).Passed)

	in.Trends = nil
	assert.False(t, checkMarketTrendImpact(in).Passed)
}
