package leadership

import (
	"fmt"
	"strings"
)

// Profile names.
const (
	ProfileExplosiveGrower    = "Explosive Grower"
	ProfileHighPotentialSetup = "High-Potential Setup"
	ProfileMarketFavourite    = "Market Favourite"
)

// check pairs a name with its implementation.
type check func(Input) CheckResult

// profile is a fixed set of checks evaluated together.
type profile struct {
	name   string
	checks []check
}

var profiles = []profile{
	{
		name: ProfileExplosiveGrower,
		checks: []check{
			checkAcceleratingGrowth,
			checkYoYEPSGrowth,
			checkConsecutiveQuarterlyGrowth,
			checkPositiveRecentEarnings,
		},
	},
	{
		name: ProfileHighPotentialSetup,
		checks: []check{
			checkSmallToMidCap,
			checkRecentIPO,
			checkLimitedFloat,
		},
	},
	{
		name: ProfileMarketFavourite,
		checks: []check{
			checkIndustryLeader,
			checkMarketTrendImpact,
		},
	},
}

// ProfileResult is the outcome of one profile.
type ProfileResult struct {
	Name        string        `json:"name"`
	Checks      []CheckResult `json:"checks"`
	PassedCount int           `json:"passed_count"`
	FullyPassed bool          `json:"fully_passed"`
}

// Evaluation is the aggregate two-tier outcome.
type Evaluation struct {
	Passed   bool            `json:"passed"`
	Message  string          `json:"message"`
	Profiles []ProfileResult `json:"profiles"`
}

// Evaluate runs all three profiles over the input. The overall verdict
// requires one fully passed (primary) profile and at least one passing
// check in every other (supporting) profile.
func Evaluate(in Input) Evaluation {
	results := make([]ProfileResult, 0, len(profiles))
	for _, p := range profiles {
		pr := ProfileResult{Name: p.name}
		for _, c := range p.checks {
			result := c(in)
			pr.Checks = append(pr.Checks, result)
			if result.Passed {
				pr.PassedCount++
			}
		}
		pr.FullyPassed = pr.PassedCount == len(p.checks)
		results = append(results, pr)
	}

	var primary []string
	var unsupported []string
	for _, pr := range results {
		if pr.FullyPassed {
			primary = append(primary, pr.Name)
		}
	}
	for _, pr := range results {
		if !pr.FullyPassed && pr.PassedCount == 0 {
			unsupported = append(unsupported, pr.Name)
		}
	}

	eval := Evaluation{Profiles: results}
	switch {
	case len(primary) == 0:
		eval.Message = "no profile fully passed"
	case len(unsupported) > 0:
		eval.Message = fmt.Sprintf(
			"qualifies as %s but lacks supporting strength in %s",
			strings.Join(primary, ", "), strings.Join(unsupported, ", "),
		)
	default:
		eval.Passed = true
		eval.Message = fmt.Sprintf("qualifies as %s with supporting strength across profiles", strings.Join(primary, ", "))
	}

	return eval
}
