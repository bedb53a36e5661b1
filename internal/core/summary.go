package core

import (
	"fmt"
)

// Summarize reduces all provider results to one health verdict: critical
// when anything failed hard, warning when the worst clamped usage across
// providers is at or past 80%, healthy otherwise. Max stress is computed
// from the classified percentages directly rather than re-parsing the
// formatted display strings.
func Summarize(results map[string]ProviderResult) GlobalSummary {
	failures := 0
	maxStress := 0.0

	for _, res := range results {
		if res.Status == StatusError {
			failures++
			continue
		}
		if p, ok := maxUsedPercent(res.Data); ok && p > maxStress {
			maxStress = p
		}
	}

	switch {
	case failures > 0:
		noun := "provider"
		if failures != 1 {
			noun = "providers"
		}
		return GlobalSummary{
			Status:  SummaryCritical,
			Message: fmt.Sprintf("%d %s failing", failures, noun),
		}
	case maxStress >= 80:
		return GlobalSummary{
			Status:  SummaryWarning,
			Message: fmt.Sprintf("usage at %.0f%% of quota", maxStress),
		}
	default:
		return GlobalSummary{
			Status:  SummaryHealthy,
			Message: "all providers within limits",
		}
	}
}

// maxUsedPercent is the most-constraining clamped usage in one result.
func maxUsedPercent(u *Usage) (float64, bool) {
	if u == nil {
		return 0, false
	}

	max := 0.0
	found := false
	observe := func(p float64) {
		found = true
		if p = ClampPercent(p); p > max {
			max = p
		}
	}

	for _, w := range u.Windows.Windows() {
		observe(w.UsedPercent)
	}
	for _, t := range u.Tracks {
		observe(t.UsedPercent)
	}
	if u.Percent != nil {
		observe(100 - ClampPercent(u.Percent.PercentLeft))
	}

	return max, found
}

// HasErrors reports whether any result failed hard. Front-ends use this
// for the process exit code instead of re-deriving it from the map.
func HasErrors(results map[string]ProviderResult) bool {
	for _, res := range results {
		if res.Status == StatusError {
			return true
		}
	}
	return false
}
