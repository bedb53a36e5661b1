package core

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestNormalizeWindowMissingPercent(t *testing.T) {
	cases := []map[string]any{
		nil,
		{},
		{"window_minutes": 300.0},
		{"resets_at": float64(testNow.Unix())},
		{"used_percent": "12"},
		{"used_percent": math.NaN()},
		{"used_percent": math.Inf(1)},
	}
	for i, raw := range cases {
		if got := NormalizeWindow(raw, testNow); got != nil {
			t.Errorf("case %d: expected nil, got %+v", i, got)
		}
	}
}

func TestNormalizeWindowSpellings(t *testing.T) {
	raw := map[string]any{
		"usedPercent":        42.5,
		"windowDurationMins": 300.0,
		"resetAt":            float64(testNow.Add(time.Hour).Unix()),
	}
	w := NormalizeWindow(raw, testNow)
	if w == nil {
		t.Fatal("expected a window")
	}
	if w.UsedPercent != 42.5 {
		t.Errorf("used percent = %v", w.UsedPercent)
	}
	if w.WindowMinutes == nil || *w.WindowMinutes != 300 {
		t.Errorf("window minutes = %v", w.WindowMinutes)
	}
	if w.ResetAt == nil || !w.ResetAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("reset at = %v", w.ResetAt)
	}
}

func TestNormalizeWindowSpellingPriority(t *testing.T) {
	// snake_case comes first in each priority table
	raw := map[string]any{
		"used_percent":   10.0,
		"usedPercent":    99.0,
		"window_minutes": 60.0,
		"windowMinutes":  120.0,
	}
	w := NormalizeWindow(raw, testNow)
	if w == nil {
		t.Fatal("expected a window")
	}
	if w.UsedPercent != 10 {
		t.Errorf("expected snake_case percent to win, got %v", w.UsedPercent)
	}
	if *w.WindowMinutes != 60 {
		t.Errorf("expected snake_case minutes to win, got %v", *w.WindowMinutes)
	}
}

func TestNormalizeWindowDerivesResetFromDuration(t *testing.T) {
	raw := map[string]any{
		"used_percent":   55.0,
		"window_minutes": 300.0,
	}
	w := NormalizeWindow(raw, testNow)
	if w == nil {
		t.Fatal("expected a window")
	}
	want := testNow.Add(300 * time.Minute)
	if w.ResetAt == nil || !w.ResetAt.Equal(want) {
		t.Errorf("expected derived reset %v, got %v", want, w.ResetAt)
	}
}

func TestNormalizeWindowRelativeReset(t *testing.T) {
	raw := map[string]any{
		"used_percent":      20.0,
		"resets_in_seconds": 90.0,
	}
	w := NormalizeWindow(raw, testNow)
	if w == nil {
		t.Fatal("expected a window")
	}
	if w.ResetAt == nil || !w.ResetAt.Equal(testNow.Add(90*time.Second)) {
		t.Errorf("reset at = %v", w.ResetAt)
	}
	if w.WindowMinutes != nil {
		t.Errorf("expected unknown duration, got %v", *w.WindowMinutes)
	}
}

func TestNormalizeWindowNoResetResolvable(t *testing.T) {
	w := NormalizeWindow(map[string]any{"used_percent": 75.0}, testNow)
	if w == nil {
		t.Fatal("percentage alone is still a window")
	}
	if w.ResetAt != nil {
		t.Errorf("expected nil reset, got %v", w.ResetAt)
	}
}

func TestNormalizeWindowPreservesOutOfRangePercent(t *testing.T) {
	w := NormalizeWindow(map[string]any{"used_percent": 110.0, "window_minutes": 60.0}, testNow)
	if w == nil {
		t.Fatal("expected a window")
	}
	if w.UsedPercent != 110 {
		t.Errorf("normalization must not clamp, got %v", w.UsedPercent)
	}
}

func TestClampPercentRoundTrip(t *testing.T) {
	for used := 0.0; used <= 200; used++ {
		left := ClampPercent(100 - ClampPercent(used))
		direct := ClampPercent(100 - used)
		if left != direct {
			t.Fatalf("used=%v: clamp(100-clamp(u))=%v, clamp(100-u)=%v", used, left, direct)
		}
	}
	if ClampPercent(110) != 100 {
		t.Errorf("clamp(110) = %v", ClampPercent(110))
	}
	if ClampPercent(-10) != 0 {
		t.Errorf("clamp(-10) = %v", ClampPercent(-10))
	}
}
