package watchlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// readyItem is a passing item sitting just under its pivot on quiet volume.
func readyItem() Item {
	return Item{
		Ticker:            "NVDA",
		LastRefreshStatus: RefreshPass,
		VCPPass:           true,
		HasPivot:          true,
		IsPivotGood:       true,
		PivotPrice:        150,
		PatternAgeDays:    30,
		PivotProximityPct: -2.5,
		VolVs50dRatio:     0.9,
		DayChangePct:      0.5,
	}
}

func TestDeriveStatus_BuyReady(t *testing.T) {
	assert.Equal(t, StatusBuyReady, DeriveStatus(readyItem()))
}

func TestDeriveStatus_StalePatternDemotes(t *testing.T) {
	item := readyItem()
	item.PatternAgeDays = 120
	assert.Equal(t, StatusWatch, DeriveStatus(item))
}

func TestDeriveStatus_RefreshOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		status string
		want   string
	}{
		{"failed refresh", RefreshFail, StatusFailed},
		{"pending refresh", RefreshPending, StatusPending},
		{"unknown refresh", RefreshUnknown, StatusPending},
		{"unrecognised value", "BOGUS", StatusWatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := readyItem()
			item.LastRefreshStatus = tc.status
			assert.Equal(t, tc.want, DeriveStatus(item))
		})
	}
}

func TestDeriveStatus_NoRichSignals(t *testing.T) {
	item := Item{LastRefreshStatus: RefreshPass, PivotProximityPct: -3}
	assert.Equal(t, StatusBuyReady, DeriveStatus(item))

	item.PivotProximityPct = -12
	assert.Equal(t, StatusWatch, DeriveStatus(item))

	// Extended above the pivot is not "at pivot".
	item.PivotProximityPct = 2
	assert.Equal(t, StatusWatch, DeriveStatus(item))
}

func TestDeriveStatus_ChurnOnDownDay(t *testing.T) {
	item := readyItem()
	item.VolVs50dRatio = 3.5
	item.DayChangePct = -1.2
	assert.Equal(t, StatusWatch, DeriveStatus(item))

	// Heavy volume on an up day does not demote.
	item.DayChangePct = 1.2
	assert.Equal(t, StatusBuyReady, DeriveStatus(item))
}

func TestDeriveStatus_BuyAlert(t *testing.T) {
	// Pivot exists but price sits well below it on quiet volume.
	item := readyItem()
	item.VCPPass = false
	item.IsPivotGood = false
	item.PivotProximityPct = -8
	item.VolVs50dRatio = 0.5
	assert.Equal(t, StatusBuyAlert, DeriveStatus(item))

	// Same distance on elevated volume is just a Watch.
	item.VolVs50dRatio = 1.4
	assert.Equal(t, StatusWatch, DeriveStatus(item))
}

func TestDeriveStatus_PullbackAlert(t *testing.T) {
	item := Item{
		LastRefreshStatus: RefreshPass,
		HasPullbackSetup:  true,
		PivotPrice:        90,
		PatternAgeDays:    20,
		PivotProximityPct: -10,
		VolVs50dRatio:     0.75,
	}
	assert.Equal(t, StatusBuyAlert, DeriveStatus(item))

	item.VolVs50dRatio = 0.65
	assert.Equal(t, StatusWatch, DeriveStatus(item))
}

func TestPartition(t *testing.T) {
	items := []Item{
		{Ticker: "A", LastRefreshStatus: RefreshFail},
		{Ticker: "B", LastRefreshStatus: RefreshFail, IsFavourite: true},
		{Ticker: "C", LastRefreshStatus: RefreshPass},
		{Ticker: "D", LastRefreshStatus: RefreshUnknown},
	}

	active, archive := Partition(items)

	assert.Len(t, archive, 1)
	assert.Equal(t, "A", archive[0].Ticker)
	// Favourites survive a failed refresh; every item lands exactly once.
	assert.Len(t, active, 3)
	assert.Equal(t, len(items), len(active)+len(archive))
}
