package watchlist

// Pivot-proximity band considered "at pivot": within 5% below up to touch.
const (
	atPivotLower = -5.0
	atPivotUpper = 0.0

	staleAgeDays     = 90
	churnVolumeRatio = 3.0
	quietVolumeRatio = 1.0
	pullbackRatioLo  = 0.7
	pullbackRatioHi  = 0.8
)

// DeriveStatus maps an item's refresh outcome and enrichments to the UI
// status. Pure function; the rules are ordered and the first match wins.
func DeriveStatus(i Item) string {
	switch i.LastRefreshStatus {
	case RefreshFail:
		return StatusFailed
	case RefreshPending, RefreshUnknown:
		return StatusPending
	}
	if i.LastRefreshStatus != RefreshPass {
		return StatusWatch
	}

	nearPivot := i.PivotProximityPct >= atPivotLower && i.PivotProximityPct <= atPivotUpper

	// Without rich VCP signals only the pivot proximity can promote.
	if !hasRichSignals(i) {
		if nearPivot {
			return StatusBuyReady
		}
		return StatusWatch
	}

	if i.PatternAgeDays > staleAgeDays {
		return StatusWatch
	}
	// Heavy volume on a down day reads as distribution.
	if i.VolVs50dRatio >= churnVolumeRatio && i.DayChangePct < 0 {
		return StatusWatch
	}

	if i.VCPPass && i.IsPivotGood && nearPivot {
		return StatusBuyReady
	}
	if i.HasPivot && i.PivotProximityPct < atPivotLower && i.VolVs50dRatio < quietVolumeRatio {
		return StatusBuyAlert
	}
	if i.HasPullbackSetup && i.VolVs50dRatio >= pullbackRatioLo && i.VolVs50dRatio <= pullbackRatioHi {
		return StatusBuyAlert
	}
	return StatusWatch
}

// hasRichSignals reports whether the funnel attached VCP signals to the
// item at all.
func hasRichSignals(i Item) bool {
	return i.VCPPass || i.HasPivot || i.IsPivotGood || i.HasPullbackSetup || i.PivotPrice > 0
}

// ShouldArchive implements the partition rule: failed non-favourites leave
// the active list.
func ShouldArchive(i Item) bool {
	return i.LastRefreshStatus == RefreshFail && !i.IsFavourite
}

// Partition splits items into the active set and the archive set. Every
// input item lands in exactly one of the two.
func Partition(items []Item) (active, archive []Item) {
	for _, item := range items {
		if ShouldArchive(item) {
			archive = append(archive, item)
		} else {
			active = append(active, item)
		}
	}
	return active, archive
}
