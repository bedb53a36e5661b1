package core

import (
	"encoding/json"
	"math"
	"time"
)

// Vendors spell the same window attributes several ways (snake_case and
// camelCase generations of the same unversioned wire format). Each logical
// attribute resolves against an ordered spelling list, first finite number
// wins. Adding a new vendor spelling is a one-line table edit.
var (
	usedPercentFields   = []string{"used_percent", "usedPercent"}
	windowMinutesFields = []string{"window_minutes", "windowMinutes", "windowDurationMins"}
	resetAtFields       = []string{"resets_at", "resetAt"}
	resetInFields       = []string{"resets_in_seconds"}
)

// NormalizeWindow reconciles one vendor-shaped rate-limit window into the
// canonical form. It returns nil when the window is unusable (no finite
// used-percentage); that is not an error, just nothing to report.
//
// The reset time is taken from an absolute epoch-seconds field when
// present, derived as now+window when only the duration is known, and left
// nil otherwise. UsedPercent is passed through unclamped; display layers
// clamp.
func NormalizeWindow(raw map[string]any, now time.Time) *NormalizedWindow {
	if len(raw) == 0 {
		return nil
	}

	used, ok := firstFinite(raw, usedPercentFields)
	if !ok {
		return nil
	}

	win := &NormalizedWindow{UsedPercent: used}

	if mins, ok := firstFinite(raw, windowMinutesFields); ok {
		m := int(mins)
		win.WindowMinutes = &m
	}

	if epoch, ok := firstFinite(raw, resetAtFields); ok && epoch > 0 {
		t := time.Unix(int64(epoch), 0)
		win.ResetAt = &t
	} else if secs, ok := firstFinite(raw, resetInFields); ok {
		t := now.Add(time.Duration(secs) * time.Second)
		win.ResetAt = &t
	} else if win.WindowMinutes != nil {
		t := now.Add(time.Duration(*win.WindowMinutes) * time.Minute)
		win.ResetAt = &t
	}

	return win
}

func firstFinite(raw map[string]any, fields []string) (float64, bool) {
	for _, f := range fields {
		v, present := raw[f]
		if !present {
			continue
		}
		if n, ok := asFinite(v); ok {
			return n, true
		}
	}
	return 0, false
}

// asFinite coerces the numeric shapes JSON decoding produces. Strings and
// other types are rejected rather than parsed; vendors send numbers here.
func asFinite(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}
