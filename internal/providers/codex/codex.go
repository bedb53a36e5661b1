// Package codex implements a core.Provider for the OpenAI Codex CLI.
// The CLI appends token_count events with a rate_limits payload to its
// session JSONL files; the newest event carries the current
// primary/secondary windows. No network call is needed.
//
// The window field spellings changed between CLI generations
// (used_percent/window_minutes/resets_at vs usedPercent/
// windowDurationMins/resetsAt); the payloads are handed to the core
// normalizer untyped so both decode the same way.
package codex

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
)

const maxScannerBufferSize = 8 * 1024 * 1024

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) ID() string { return "codex" }

func (p *Provider) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:   "OpenAI Codex CLI",
		DocURL: "https://github.com/openai/codex",
	}
}

type authFile struct {
	Tokens struct {
		AccessToken string `json:"access_token"`
	} `json:"tokens"`
	APIKey string `json:"OPENAI_API_KEY"`
}

type sessionEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type eventPayload struct {
	Type       string      `json:"type"`
	RateLimits *rateLimits `json:"rate_limits,omitempty"`
}

type rateLimits struct {
	Primary   map[string]any `json:"primary,omitempty"`
	Secondary map[string]any `json:"secondary,omitempty"`
	PlanType  *string        `json:"plan_type,omitempty"`
}

func (p *Provider) Fetch(ctx context.Context, acct core.AccountConfig) (*core.Usage, error) {
	authPath := acct.Override("auth_path", core.HomePath(".codex", "auth.json"))
	sessionsDir := acct.Override("sessions_dir", core.HomePath(".codex", "sessions"))

	if err := readAuth(authPath); err != nil {
		return nil, err
	}

	files := collectSessionFiles(sessionsDir)
	if len(files) == 0 {
		// Logged in but never ran a session: affirmatively nothing to
		// report, not a failure.
		return nil, nil
	}

	latest, _ := latestRateLimits(ctx, files)
	if latest == nil {
		return nil, nil
	}

	now := time.Now()
	usage := &core.Usage{
		Windows: core.ClassifyWindows(
			core.NormalizeWindow(latest.Primary, now),
			core.NormalizeWindow(latest.Secondary, now),
		),
	}
	if latest.PlanType != nil {
		usage.Plan = *latest.PlanType
	}

	return usage, nil
}

// readAuth confirms the CLI is logged in; the quota data itself lives in
// the session files, so the token is only checked for presence.
func readAuth(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Errf(core.ReasonNoCredentials, "reading Codex auth: %v", err)
	}
	var auth authFile
	if err := json.Unmarshal(data, &auth); err != nil {
		return core.Errf(core.ReasonParseError, "parsing Codex auth: %v", err)
	}
	if auth.Tokens.AccessToken == "" && auth.APIKey == "" {
		return core.Errf(core.ReasonNoCredentials, "no Codex token in %s", path)
	}
	return nil
}

func collectSessionFiles(dir string) []string {
	var files []string
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !info.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// latestRateLimits scans every session file for the newest rate_limits
// payload by event timestamp.
func latestRateLimits(ctx context.Context, files []string) (*rateLimits, time.Time) {
	var (
		latest   *rateLimits
		latestAt time.Time
	)

	for _, path := range files {
		if ctx.Err() != nil {
			return latest, latestAt
		}
		rl, at := scanSessionFile(path)
		if rl != nil && (latest == nil || at.After(latestAt)) {
			latest, latestAt = rl, at
		}
	}
	return latest, latestAt
}

func scanSessionFile(path string) (*rateLimits, time.Time) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}
	}
	defer f.Close()

	var (
		latest   *rateLimits
		latestAt time.Time
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), maxScannerBufferSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event sessionEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue // skip malformed lines
		}
		if event.Type != "event_msg" || len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			continue
		}
		if payload.Type != "token_count" || payload.RateLimits == nil {
			continue
		}
		at, err := time.Parse(time.RFC3339, event.Timestamp)
		if err != nil {
			continue
		}
		if latest == nil || at.After(latestAt) {
			latest, latestAt = payload.RateLimits, at
		}
	}
	return latest, latestAt
}
