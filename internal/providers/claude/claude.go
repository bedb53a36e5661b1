// Package claude implements a core.Provider for Claude Code
// subscriptions. Credentials come from the CLI's local OAuth credential
// file; usage comes from the OAuth usage endpoint, which reports a
// five-hour session window and a seven-day window, each with a
// utilization percentage and an RFC3339 reset time.
package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/providers/shared"
)

const (
	defaultUsageURL = "https://api.anthropic.com/api/oauth/usage"
	defaultTokenURL = "https://console.anthropic.com/v1/oauth/token"

	// OAuth client ID the Claude Code CLI registers its tokens under.
	oauthClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	shortWindowMinutes = 300   // five_hour
	longWindowMinutes  = 10080 // seven_day
)

type Provider struct {
	client *http.Client
}

func New() *Provider { return &Provider{} }

// NewWithClient injects an HTTP client, for tests.
func NewWithClient(c *http.Client) *Provider { return &Provider{client: c} }

func (p *Provider) ID() string { return "claude" }

func (p *Provider) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:   "Claude Code",
		DocURL: "https://code.claude.com/",
	}
}

type credentialsFile struct {
	ClaudeAiOauth *oauthCreds `json:"claudeAiOauth"`
}

type oauthCreds struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"` // Unix millis
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType"`
}

type usageResponse struct {
	FiveHour *usageBucket `json:"five_hour"`
	SevenDay *usageBucket `json:"seven_day"`
}

type usageBucket struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (p *Provider) Fetch(ctx context.Context, acct core.AccountConfig) (*core.Usage, error) {
	credsPath := acct.Override("credentials_path", core.HomePath(".claude", ".credentials.json"))

	creds, err := readCredentials(credsPath)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := creds.AccessToken
	if expired(creds, now) {
		token, err = p.refresh(ctx, acct, creds, credsPath)
		if err != nil {
			return nil, err
		}
	}

	usageURL := acct.Override("usage_url", defaultUsageURL)
	headers := map[string]string{
		"Authorization":  shared.Bearer(token),
		"anthropic-beta": "oauth-2025-04-20",
	}

	var usage usageResponse
	if err := shared.GetJSON(ctx, p.client, usageURL, headers, &usage); err != nil {
		return nil, err
	}

	primary := core.NormalizeWindow(rawWindow(usage.FiveHour, shortWindowMinutes), now)
	secondary := core.NormalizeWindow(rawWindow(usage.SevenDay, longWindowMinutes), now)

	return &core.Usage{
		Plan:    creds.SubscriptionType,
		Windows: core.ClassifyWindows(primary, secondary),
	}, nil
}

func readCredentials(path string) (*oauthCreds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Errf(core.ReasonNoCredentials, "reading Claude credentials: %v", err)
	}
	var f credentialsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, core.Errf(core.ReasonParseError, "parsing Claude credentials: %v", err)
	}
	if f.ClaudeAiOauth == nil || f.ClaudeAiOauth.AccessToken == "" {
		return nil, core.Errf(core.ReasonNoCredentials, "no OAuth token in %s", path)
	}
	return f.ClaudeAiOauth, nil
}

func expired(creds *oauthCreds, now time.Time) bool {
	if creds.ExpiresAt == 0 {
		return false
	}
	return time.UnixMilli(creds.ExpiresAt).Before(now)
}

// refresh exchanges the refresh token for a fresh access token and
// writes the rotated credentials back to the CLI's file, best effort.
func (p *Provider) refresh(ctx context.Context, acct core.AccountConfig, creds *oauthCreds, credsPath string) (string, error) {
	if creds.RefreshToken == "" {
		return "", core.Errf(core.ReasonTokenExpired, "Claude access token expired and no refresh token present")
	}

	tokenURL := acct.Override("token_url", defaultTokenURL)
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {creds.RefreshToken},
		"client_id":     {oauthClientID},
	}

	var tok tokenResponse
	if err := shared.PostForm(ctx, p.client, tokenURL, form.Encode(), &tok); err != nil {
		return "", core.Errf(core.ReasonTokenExpired, "Claude token refresh failed: %v", err)
	}
	if tok.AccessToken == "" {
		return "", core.Errf(core.ReasonTokenExpired, "Claude token refresh returned no token")
	}

	updated := *creds
	updated.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	if tok.ExpiresIn > 0 {
		updated.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).UnixMilli()
	}
	writeCredentials(credsPath, &updated)

	return tok.AccessToken, nil
}

func writeCredentials(path string, creds *oauthCreds) {
	data, err := json.MarshalIndent(credentialsFile{ClaudeAiOauth: creds}, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(path, append(data, '\n'), 0o600)
}

// rawWindow converts one vendor bucket into the normalizer's wire shape.
// The vendor names the window by its field (five_hour/seven_day) instead
// of carrying a duration, so the duration is filled in here; the RFC3339
// reset becomes epoch seconds.
func rawWindow(b *usageBucket, minutes int) map[string]any {
	if b == nil {
		return nil
	}
	raw := map[string]any{
		"used_percent":   b.Utilization,
		"window_minutes": float64(minutes),
	}
	if t, err := time.Parse(time.RFC3339, b.ResetsAt); err == nil {
		raw["resets_at"] = float64(t.Unix())
	}
	return raw
}
