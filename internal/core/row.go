package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Track families are recognised by substring so new vendor model IDs are
// picked up without a code change; they only need a label here to get a
// friendlier one. Families are emitted in this order regardless of map
// iteration order.
var trackFamilyOrder = []string{"pro", "flash"}

// BuildRows turns classified results into display rows, one per provider
// (or one per sub-track for providers exposing independent quota tracks),
// in the order providers are listed.
func BuildRows(results map[string]ProviderResult, providerOrder []string, now time.Time) []DisplayRow {
	var rows []DisplayRow
	for _, id := range providerOrder {
		res, ok := results[id]
		if !ok {
			continue
		}
		rows = append(rows, buildProviderRows(id, res, now)...)
	}
	return rows
}

func buildProviderRows(provider string, res ProviderResult, now time.Time) []DisplayRow {
	if res.Status != StatusOK {
		return []DisplayRow{failureRow(provider, res)}
	}

	u := res.Data

	if len(u.Tracks) > 0 {
		return trackRows(provider, u.Tracks, now)
	}

	if !u.Windows.Empty() {
		ordered := orderWindows(u.Windows)
		worst := ordered[0]
		return []DisplayRow{{
			Provider:   provider,
			Urgency:    urgencyForPercent(ClampPercent(worst.UsedPercent)),
			LimitLabel: windowLabel(worst),
			Details:    strings.Join(windowLines(ordered, now), ", "),
		}}
	}

	if u.Percent != nil {
		used := ClampPercent(100 - ClampPercent(u.Percent.PercentLeft))
		return []DisplayRow{{
			Provider:   provider,
			Urgency:    urgencyForPercent(used),
			LimitLabel: u.Percent.Label,
			Details:    percentLine(used, u.Percent.ResetAt, now),
		}}
	}

	return []DisplayRow{{
		Provider:   provider,
		Urgency:    UrgencyCanUse,
		LimitLabel: "-",
		Details:    res.Display,
	}}
}

func failureRow(provider string, res ProviderResult) DisplayRow {
	urgency := UrgencyFetchFailed
	details := fmt.Sprintf("fetch failed (%s)", reasonOrUnknown(res.Reason))
	switch {
	case res.Reason == ReasonNoCredentials || res.Reason == ReasonAuthFailed:
		urgency = UrgencyLoginRequired
		details = "login required"
	case res.Status == StatusNoData && res.Reason == "":
		// the provider affirmatively found nothing, which is not a failure
		details = "no data"
	}
	return DisplayRow{
		Provider:   provider,
		Urgency:    urgency,
		LimitLabel: "-",
		Details:    details,
	}
}

func reasonOrUnknown(r ReasonCode) ReasonCode {
	if r == "" {
		return ReasonUnknown
	}
	return r
}

func trackRows(provider string, tracks map[string]TrackUsage, now time.Time) []DisplayRow {
	type namedTrack struct {
		family string
		usage  TrackUsage
	}

	// First occurrence wins when several model IDs normalize to the same
	// family.
	byFamily := make(map[string]TrackUsage, len(tracks))
	ids := lo.Keys(tracks)
	sort.Strings(ids)
	for _, id := range ids {
		fam := trackFamily(id)
		if _, seen := byFamily[fam]; !seen {
			byFamily[fam] = tracks[id]
		}
	}

	ordered := make([]namedTrack, 0, len(byFamily))
	for _, fam := range trackFamilyOrder {
		if t, ok := byFamily[fam]; ok {
			ordered = append(ordered, namedTrack{fam, t})
			delete(byFamily, fam)
		}
	}
	rest := lo.Keys(byFamily)
	sort.Strings(rest)
	for _, fam := range rest {
		ordered = append(ordered, namedTrack{fam, byFamily[fam]})
	}

	rows := make([]DisplayRow, 0, len(ordered))
	for _, nt := range ordered {
		used := ClampPercent(nt.usage.UsedPercent)
		rows = append(rows, DisplayRow{
			Provider:   provider + ":" + nt.family,
			Urgency:    urgencyForPercent(used),
			LimitLabel: nt.family,
			Details:    percentLine(used, nt.usage.ResetAt, now),
		})
	}
	return rows
}

func trackFamily(modelID string) string {
	lower := strings.ToLower(modelID)
	for _, fam := range trackFamilyOrder {
		if strings.Contains(lower, fam) {
			return fam
		}
	}
	return sanitizeTrackID(lower)
}

func sanitizeTrackID(id string) string {
	var b strings.Builder
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// orderWindows returns the set's windows most-constraining first: higher
// used percentage wins, ties go to the sooner reset, further ties keep the
// short-before-long slot order.
func orderWindows(ws WindowSet) []*ClassifiedWindow {
	out := ws.Windows()
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := ClampPercent(out[i].UsedPercent), ClampPercent(out[j].UsedPercent)
		if pi != pj {
			return pi > pj
		}
		return out[i].ResetAt.Before(out[j].ResetAt)
	})
	return out
}

func windowLines(ordered []*ClassifiedWindow, now time.Time) []string {
	return lo.Map(ordered, func(w *ClassifiedWindow, _ int) string {
		return fmt.Sprintf("%s: %.0f%% used (resets in %s)",
			windowLabel(w), ClampPercent(w.UsedPercent), FormatDuration(now, w.ResetAt))
	})
}

func percentLine(usedPercent float64, resetAt *time.Time, now time.Time) string {
	if resetAt == nil {
		return fmt.Sprintf("%.0f%% used", usedPercent)
	}
	return fmt.Sprintf("%.0f%% used (resets in %s)", usedPercent, FormatDuration(now, *resetAt))
}

// usageLines renders every quota line for a usage value, for the
// provider-level display string. Ordering matches the table rows.
func usageLines(u *Usage, now time.Time) []string {
	if u == nil {
		return nil
	}
	if len(u.Tracks) > 0 {
		rows := trackRows("", u.Tracks, now)
		return lo.Map(rows, func(r DisplayRow, _ int) string {
			return r.LimitLabel + ": " + r.Details
		})
	}
	if !u.Windows.Empty() {
		return windowLines(orderWindows(u.Windows), now)
	}
	if u.Percent != nil {
		used := ClampPercent(100 - ClampPercent(u.Percent.PercentLeft))
		return []string{percentLine(used, u.Percent.ResetAt, now)}
	}
	return nil
}

func urgencyForPercent(usedPercent float64) Urgency {
	switch {
	case usedPercent >= 100:
		return UrgencyWaitReset
	case usedPercent >= 80:
		return UrgencyLowQuota
	default:
		return UrgencyCanUse
	}
}

// windowLabel names a window by its duration ("5h", "7d"), falling back to
// the slot name when the vendor never said how long the window is.
func windowLabel(w *ClassifiedWindow) string {
	if w.WindowMinutes == nil {
		return string(w.Slot)
	}
	m := *w.WindowMinutes
	switch {
	case m >= 1440 && m%1440 == 0:
		return fmt.Sprintf("%dd", m/1440)
	case m >= 60 && m%60 == 0:
		return fmt.Sprintf("%dh", m/60)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// FormatDuration renders the time until a reset with truncated units:
// days when nonzero, hours when nonzero, and minutes when nonzero or when
// both larger units are zero. A reset not strictly in the future is
// "already reset".
func FormatDuration(now, at time.Time) string {
	if !at.After(now) {
		return "already reset"
	}

	mins := int(at.Sub(now).Minutes())
	days := mins / 1440
	hours := (mins % 1440) / 60
	mins = mins % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 || (days == 0 && hours == 0) {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return strings.Join(parts, " ")
}
