// Package watchlist maintains the user watchlist: persistence, the derived
// UI status, and the refresh funnel that re-runs the screening stages over
// every item.
package watchlist

import "time"

// Derived UI status labels.
const (
	StatusBuyReady = "Buy Ready"
	StatusBuyAlert = "Buy Alert"
	StatusWatch    = "Watch"
	StatusPending  = "Pending"
	StatusFailed   = "Failed"
)

// Refresh outcomes recorded by the funnel.
const (
	RefreshPass    = "PASS"
	RefreshFail    = "FAIL"
	RefreshPending = "PENDING"
	RefreshUnknown = "UNKNOWN"
)

// Item is one watchlist entry with the enrichments the funnel attaches.
type Item struct {
	UserID      string `json:"user_id"`
	Ticker      string `json:"ticker"`
	IsFavourite bool   `json:"is_favourite"`
	Status      string `json:"status"`

	LastRefreshStatus string     `json:"last_refresh_status"`
	FailedStage       string     `json:"failed_stage,omitempty"`
	LastRefreshAt     *time.Time `json:"last_refresh_at,omitempty"`

	// VCP enrichments.
	VCPPass              bool    `json:"vcp_pass"`
	HasPivot             bool    `json:"has_pivot"`
	IsPivotGood          bool    `json:"is_pivot_good"`
	IsAtPivot            bool    `json:"is_at_pivot"`
	HasPullbackSetup     bool    `json:"has_pullback_setup"`
	PivotPrice           float64 `json:"pivot_price"`
	PatternAgeDays       int     `json:"pattern_age_days"`
	PivotProximityPct    float64 `json:"pivot_proximity_percent"`
	DaysSincePivot       int     `json:"days_since_pivot"`
	Footprint            string  `json:"vcpFootprint"`

	// Compact data metrics.
	CurrentPrice  float64 `json:"current_price"`
	VolLast       float64 `json:"vol_last"`
	Vol50dAvg     float64 `json:"vol_50d_avg"`
	DayChangePct  float64 `json:"day_change_pct"`
	VolVs50dRatio float64 `json:"vol_vs_50d_ratio"`
}

// ArchivedItem is a watchlist entry moved to the archive; the archive rows
// self-delete after 30 days.
type ArchivedItem struct {
	Item
	ArchivedAt time.Time `json:"archived_at"`
}

// RefreshSummary is the exact response shape of the refresh endpoint.
type RefreshSummary struct {
	Message       string `json:"message"`
	UpdatedItems  int    `json:"updated_items"`
	ArchivedItems int    `json:"archived_items"`
	FailedItems   int    `json:"failed_items"`
}
