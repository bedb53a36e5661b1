// Package gemini implements a core.Provider for the Gemini CLI. The
// CLI stores Google OAuth credentials locally; quota comes from the
// Code Assist API, which reports per-model buckets with a remaining
// fraction and a reset time.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/providers/shared"
)

const (
	defaultTokenURL      = "https://oauth2.googleapis.com/token"
	defaultUsageBaseURL  = "https://cloudcode-pa.googleapis.com"
	codeAssistAPIVersion = "v1internal"
)

// ClientInfo carries the OAuth client the Gemini CLI registers its
// grants under. It is resolved by the caller and passed in explicitly
// so tests and alternate builds can substitute their own registration.
type ClientInfo struct {
	ID     string
	Secret string
}

// DefaultClientInfo is the Gemini CLI's public OAuth registration.
func DefaultClientInfo() ClientInfo {
	return ClientInfo{
		ID:     "681255809395-oo8ft2oprdrnp9e3aqf6av3hmdib135j.apps.googleusercontent.com",
		Secret: "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",
	}
}

type Provider struct {
	oauth  ClientInfo
	client *http.Client
}

func New() *Provider { return &Provider{oauth: DefaultClientInfo()} }

// NewWithClient injects the OAuth registration and HTTP client, for tests.
func NewWithClient(oauth ClientInfo, c *http.Client) *Provider {
	return &Provider{oauth: oauth, client: c}
}

func (p *Provider) ID() string { return "gemini" }

func (p *Provider) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:   "Gemini CLI",
		DocURL: "https://github.com/google-gemini/gemini-cli",
	}
}

type oauthCreds struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiryDate   int64  `json:"expiry_date"` // Unix millis
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type loadCodeAssistRequest struct {
	CloudAICompanionProject string         `json:"cloudaicompanionProject,omitempty"`
	Metadata                clientMetadata `json:"metadata"`
}

type clientMetadata struct {
	IDEType    string `json:"ideType"`
	Platform   string `json:"platform"`
	PluginType string `json:"pluginType"`
	Project    string `json:"duetProject,omitempty"`
}

type loadCodeAssistResponse struct {
	CloudAICompanionProject string `json:"cloudaicompanionProject"`
	CurrentTier             *struct {
		ID string `json:"id"`
	} `json:"currentTier,omitempty"`
}

type retrieveUserUsageRequest struct {
	Project string `json:"project"`
}

type retrieveUserUsageResponse struct {
	Buckets []usageBucket `json:"buckets"`
}

type usageBucket struct {
	ModelID           string   `json:"modelId"`
	RemainingFraction *float64 `json:"remainingFraction"`
	ResetTime         string   `json:"resetTime"` // RFC3339
	TokenType         string   `json:"tokenType"`
}

func (p *Provider) Fetch(ctx context.Context, acct core.AccountConfig) (*core.Usage, error) {
	credsPath := acct.Override("creds_path", core.HomePath(".gemini", "oauth_creds.json"))

	creds, err := readCredentials(credsPath)
	if err != nil {
		return nil, err
	}

	// The CLI rotates access tokens aggressively, so a refresh is done
	// unconditionally rather than trusting the stored expiry.
	token, err := p.refreshAccessToken(ctx, acct, creds)
	if err != nil {
		return nil, err
	}

	baseURL := acct.Override("usage_base_url", defaultUsageBaseURL)
	projectID, err := p.loadCodeAssist(ctx, token, acct.Override("project_id", ""), baseURL)
	if err != nil {
		return nil, err
	}

	var usage retrieveUserUsageResponse
	if err := p.codeAssistPost(ctx, token, baseURL, "retrieveUserUsage",
		retrieveUserUsageRequest{Project: projectID}, &usage); err != nil {
		return nil, err
	}

	now := time.Now()
	tracks := make(map[string]core.TrackUsage, len(usage.Buckets))
	for _, b := range usage.Buckets {
		if b.ModelID == "" || b.RemainingFraction == nil {
			continue
		}
		t := core.TrackUsage{UsedPercent: (1 - *b.RemainingFraction) * 100}
		if at, err := time.Parse(time.RFC3339, b.ResetTime); err == nil && at.After(now) {
			reset := at
			t.ResetAt = &reset
		}
		tracks[b.ModelID] = t
	}
	if len(tracks) == 0 {
		return &core.Usage{}, nil
	}

	return &core.Usage{Tracks: tracks}, nil
}

func readCredentials(path string) (*oauthCreds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Errf(core.ReasonNoCredentials, "reading Gemini credentials: %v", err)
	}
	var creds oauthCreds
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, core.Errf(core.ReasonParseError, "parsing Gemini credentials: %v", err)
	}
	if creds.RefreshToken == "" && creds.AccessToken == "" {
		return nil, core.Errf(core.ReasonNoCredentials, "no OAuth token in %s", path)
	}
	return &creds, nil
}

func (p *Provider) refreshAccessToken(ctx context.Context, acct core.AccountConfig, creds *oauthCreds) (string, error) {
	if creds.RefreshToken == "" {
		// No way to mint a fresh token; use the stored one if still valid.
		if creds.ExpiryDate > 0 && time.UnixMilli(creds.ExpiryDate).After(time.Now()) {
			return creds.AccessToken, nil
		}
		return "", core.Errf(core.ReasonTokenExpired, "Gemini access token expired and no refresh token present")
	}

	tokenURL := acct.Override("token_url", defaultTokenURL)
	form := url.Values{
		"client_id":     {p.oauth.ID},
		"client_secret": {p.oauth.Secret},
		"refresh_token": {creds.RefreshToken},
		"grant_type":    {"refresh_token"},
	}

	var tok tokenResponse
	if err := shared.PostForm(ctx, p.client, tokenURL, form.Encode(), &tok); err != nil {
		return "", core.Errf(core.ReasonTokenExpired, "Gemini token refresh failed: %v", err)
	}
	if tok.AccessToken == "" {
		return "", core.Errf(core.ReasonTokenExpired, "Gemini token refresh returned no token")
	}
	return tok.AccessToken, nil
}

// loadCodeAssist resolves the Cloud AI Companion project the usage call
// is billed against. An explicitly configured project passes through.
func (p *Provider) loadCodeAssist(ctx context.Context, token, existingProjectID, baseURL string) (string, error) {
	req := loadCodeAssistRequest{
		CloudAICompanionProject: existingProjectID,
		Metadata: clientMetadata{
			IDEType:    "IDE_UNSPECIFIED",
			Platform:   "PLATFORM_UNSPECIFIED",
			PluginType: "GEMINI",
			Project:    existingProjectID,
		},
	}

	var resp loadCodeAssistResponse
	if err := p.codeAssistPost(ctx, token, baseURL, "loadCodeAssist", req, &resp); err != nil {
		return "", err
	}
	if resp.CloudAICompanionProject != "" {
		return resp.CloudAICompanionProject, nil
	}
	return existingProjectID, nil
}

func (p *Provider) codeAssistPost(ctx context.Context, token, baseURL, method string, in, out any) error {
	apiURL := fmt.Sprintf("%s/%s:%s", baseURL, codeAssistAPIVersion, method)
	headers := map[string]string{"Authorization": shared.Bearer(token)}
	return shared.PostJSON(ctx, p.client, apiURL, headers, in, out)
}
