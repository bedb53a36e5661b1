package core

import "time"

// ResultStatus classifies the outcome of one provider fetch.
type ResultStatus string

const (
	StatusOK     ResultStatus = "ok"
	StatusNoData ResultStatus = "no-data"
	StatusError  ResultStatus = "error"
)

// ReasonCode is the closed taxonomy for fetches that returned no usable
// data. Every provider failure is mapped into exactly one of these.
type ReasonCode string

const (
	ReasonNoCredentials   ReasonCode = "no_credentials"
	ReasonTokenExpired    ReasonCode = "token_expired"
	ReasonAuthFailed      ReasonCode = "auth_failed"
	ReasonNetworkError    ReasonCode = "network_error"
	ReasonTimeout         ReasonCode = "timeout"
	ReasonParseError      ReasonCode = "parse_error"
	ReasonEndpointChanged ReasonCode = "endpoint_changed"
	ReasonAPIError        ReasonCode = "api_error"
	ReasonUnknown         ReasonCode = "unknown"
)

// Slot is the semantic role a rate-limit window is assigned after
// classification, independent of which vendor field it came from.
type Slot string

const (
	SlotShort Slot = "short" // ~5h rolling window
	SlotLong  Slot = "long"  // ~7d rolling window
)

// Urgency is the user-facing verdict for one display row.
type Urgency string

const (
	UrgencyCanUse        Urgency = "CAN_USE"
	UrgencyLowQuota      Urgency = "LOW_QUOTA"
	UrgencyWaitReset     Urgency = "WAIT_RESET"
	UrgencyLoginRequired Urgency = "LOGIN_REQUIRED"
	UrgencyFetchFailed   Urgency = "FETCH_FAILED"
)

// NormalizedWindow is one rate-limit window after field-spelling
// resolution. UsedPercent is the raw vendor value; clamping to [0,100]
// happens at display time so out-of-range values stay observable here.
type NormalizedWindow struct {
	UsedPercent   float64
	WindowMinutes *int
	ResetAt       *time.Time
}

// ClassifiedWindow is a normalized window assigned to a slot. A window
// only reaches this type with a resolvable reset time.
type ClassifiedWindow struct {
	Slot          Slot      `json:"slot"`
	UsedPercent   float64   `json:"used_percent"`
	WindowMinutes *int      `json:"window_minutes,omitempty"`
	ResetAt       time.Time `json:"reset_at"`
}

// WindowSet holds at most one window per slot for a provider snapshot.
type WindowSet struct {
	Short *ClassifiedWindow `json:"short,omitempty"`
	Long  *ClassifiedWindow `json:"long,omitempty"`
}

// Empty reports whether no time-windowed quota data is available. Callers
// treat this as "nothing to show", not as an error.
func (ws WindowSet) Empty() bool {
	return ws.Short == nil && ws.Long == nil
}

// Windows returns the present windows, short slot first.
func (ws WindowSet) Windows() []*ClassifiedWindow {
	var out []*ClassifiedWindow
	if ws.Short != nil {
		out = append(out, ws.Short)
	}
	if ws.Long != nil {
		out = append(out, ws.Long)
	}
	return out
}

// TrackUsage is one named quota bucket for providers that expose
// independent per-model tracks (e.g. Gemini model tiers).
type TrackUsage struct {
	UsedPercent float64    `json:"used_percent"`
	ResetAt     *time.Time `json:"reset_at,omitempty"`
}

// Usage is the typed value of a successful provider fetch, already
// normalized out of the vendor's wire shape. Exactly one of the three
// shapes is populated per provider: two-slot windows (Claude, Codex),
// a simple percent-remaining quota (Copilot), or per-model tracks
// (Gemini).
type Usage struct {
	Plan    string                `json:"plan,omitempty"`
	Windows WindowSet             `json:"windows"`
	Percent *PercentQuota         `json:"percent,omitempty"`
	Tracks  map[string]TrackUsage `json:"tracks,omitempty"`
}

// PercentQuota is the simple shape for providers without time-windowed
// limits: a remaining percentage plus the next reset.
type PercentQuota struct {
	Label       string     `json:"label"`
	PercentLeft float64    `json:"percent_left"`
	ResetAt     *time.Time `json:"reset_at,omitempty"`
}

// Empty reports whether the fetch succeeded but found nothing to report.
func (u *Usage) Empty() bool {
	if u == nil {
		return true
	}
	return u.Windows.Empty() && u.Percent == nil && len(u.Tracks) == 0
}

// ProviderResult is the classified outcome of one provider fetch.
//
// Invariants: status ok implies Data != nil and Reason empty; any other
// status implies Data == nil. Display is never empty. Results are built
// once per orchestrated fetch and never mutated afterwards.
type ProviderResult struct {
	Status       ResultStatus `json:"status"`
	Data         *Usage       `json:"data"`
	Reason       ReasonCode   `json:"reason,omitempty"`
	ErrorMessage string       `json:"error,omitempty"`
	Display      string       `json:"display"`
}

// DisplayRow is one line of the rendered status table. A provider with
// per-model tracks yields one row per track.
type DisplayRow struct {
	Provider   string  `json:"provider"`
	Urgency    Urgency `json:"urgency"`
	LimitLabel string  `json:"limit"`
	Details    string  `json:"details"`
}

// GlobalSummary is the single health verdict across all providers.
type GlobalSummary struct {
	Status  SummaryStatus `json:"status"`
	Message string        `json:"message"`
}

type SummaryStatus string

const (
	SummaryHealthy  SummaryStatus = "healthy"
	SummaryWarning  SummaryStatus = "warning"
	SummaryCritical SummaryStatus = "critical"
)

// ClampPercent bounds a percentage to [0, 100] for display.
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
