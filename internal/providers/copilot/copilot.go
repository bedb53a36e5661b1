// Package copilot implements a core.Provider for GitHub Copilot.
// The gh/editor integrations store an OAuth token in apps.json; the
// Copilot internal user endpoint reports quota snapshots, of which the
// premium-interactions pool is the one users run out of. Copilot has
// no time-windowed limits, so the result is a simple percent-remaining
// quota with a monthly reset date.
package copilot

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/providers/shared"
)

const defaultUserURL = "https://api.github.com/copilot_internal/user"

type Provider struct {
	client *http.Client
}

func New() *Provider { return &Provider{} }

// NewWithClient injects an HTTP client, for tests.
func NewWithClient(c *http.Client) *Provider { return &Provider{client: c} }

func (p *Provider) ID() string { return "copilot" }

func (p *Provider) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:   "GitHub Copilot",
		DocURL: "https://docs.github.com/copilot",
	}
}

// apps.json maps "github.com:<client-id>" entries to token records.
type appsEntry struct {
	OAuthToken string `json:"oauth_token"`
	User       string `json:"user"`
}

type userResponse struct {
	CopilotPlan    string `json:"copilot_plan"`
	QuotaResetDate string `json:"quota_reset_date"` // YYYY-MM-DD
	QuotaSnapshots struct {
		PremiumInteractions *quotaSnapshot `json:"premium_interactions"`
	} `json:"quota_snapshots"`
}

type quotaSnapshot struct {
	PercentRemaining float64 `json:"percent_remaining"`
	Unlimited        bool    `json:"unlimited"`
	Remaining        float64 `json:"remaining"`
	Entitlement      float64 `json:"entitlement"`
}

func (p *Provider) Fetch(ctx context.Context, acct core.AccountConfig) (*core.Usage, error) {
	appsPath := acct.Override("apps_path", core.HomePath(".config", "github-copilot", "apps.json"))

	token, err := readToken(appsPath)
	if err != nil {
		return nil, err
	}

	userURL := acct.Override("user_url", defaultUserURL)
	headers := map[string]string{"Authorization": "token " + token}

	var user userResponse
	if err := shared.GetJSON(ctx, p.client, userURL, headers, &user); err != nil {
		return nil, err
	}

	snap := user.QuotaSnapshots.PremiumInteractions
	if snap == nil || snap.Unlimited {
		return &core.Usage{Plan: user.CopilotPlan}, nil
	}

	quota := &core.PercentQuota{
		Label:       "premium",
		PercentLeft: snap.PercentRemaining,
	}
	if at, err := time.Parse("2006-01-02", user.QuotaResetDate); err == nil {
		reset := at
		quota.ResetAt = &reset
	}

	return &core.Usage{
		Plan:    user.CopilotPlan,
		Percent: quota,
	}, nil
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", core.Errf(core.ReasonNoCredentials, "reading Copilot apps.json: %v", err)
	}
	var apps map[string]appsEntry
	if err := json.Unmarshal(data, &apps); err != nil {
		return "", core.Errf(core.ReasonParseError, "parsing Copilot apps.json: %v", err)
	}
	for _, entry := range apps {
		if entry.OAuthToken != "" {
			return entry.OAuthToken, nil
		}
	}
	return "", core.Errf(core.ReasonNoCredentials, "no OAuth token in %s", path)
}
