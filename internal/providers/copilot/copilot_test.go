package copilot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
)

func writeAppsJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apps.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func copilotAccount(appsPath, userURL string) core.AccountConfig {
	return core.AccountConfig{
		ID:       "copilot-test",
		Provider: "copilot",
		ExtraData: map[string]string{
			"apps_path": appsPath,
			"user_url":  userURL,
		},
	}
}

const validApps = `{"github.com:Iv1.b507a08c87ecfe98":{"user":"octocat","oauth_token":"gho_testtoken"}}`

func TestFetchPremiumQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token gho_testtoken" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		fmt.Fprint(w, `{
			"copilot_plan": "individual_pro",
			"quota_reset_date": "2026-09-01",
			"quota_snapshots": {
				"premium_interactions": {"percent_remaining": 15.5, "unlimited": false, "remaining": 46.5, "entitlement": 300}
			}
		}`)
	}))
	defer server.Close()

	appsPath := writeAppsJSON(t, validApps)

	usage, err := New().Fetch(context.Background(), copilotAccount(appsPath, server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if usage.Plan != "individual_pro" {
		t.Errorf("expected plan 'individual_pro', got %q", usage.Plan)
	}
	if usage.Percent == nil {
		t.Fatal("expected percent quota")
	}
	if usage.Percent.Label != "premium" {
		t.Errorf("expected label 'premium', got %q", usage.Percent.Label)
	}
	if usage.Percent.PercentLeft != 15.5 {
		t.Errorf("expected 15.5%% left, got %v", usage.Percent.PercentLeft)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if usage.Percent.ResetAt == nil || !usage.Percent.ResetAt.Equal(want) {
		t.Errorf("expected reset at %v, got %v", want, usage.Percent.ResetAt)
	}
}

func TestFetchUnlimitedPlanIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"copilot_plan": "business",
			"quota_snapshots": {"premium_interactions": {"percent_remaining": 100, "unlimited": true}}
		}`)
	}))
	defer server.Close()

	appsPath := writeAppsJSON(t, validApps)

	usage, err := New().Fetch(context.Background(), copilotAccount(appsPath, server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !usage.Empty() {
		t.Errorf("expected empty usage for unlimited plan, got %+v", usage)
	}
}

func TestFetchMissingAppsJSON(t *testing.T) {
	appsPath := filepath.Join(t.TempDir(), "nope.json")

	_, err := New().Fetch(context.Background(), copilotAccount(appsPath, "http://unused.invalid"))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Reason != core.ReasonNoCredentials {
		t.Fatalf("expected no_credentials, got %v", err)
	}
}

func TestFetchAppsJSONWithoutToken(t *testing.T) {
	appsPath := writeAppsJSON(t, `{"github.com:Iv1.x":{"user":"octocat"}}`)

	_, err := New().Fetch(context.Background(), copilotAccount(appsPath, "http://unused.invalid"))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Reason != core.ReasonNoCredentials {
		t.Fatalf("expected no_credentials, got %v", err)
	}
}

func TestFetchUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	appsPath := writeAppsJSON(t, validApps)

	_, err := New().Fetch(context.Background(), copilotAccount(appsPath, server.URL))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Reason != core.ReasonAuthFailed {
		t.Fatalf("expected auth_failed, got %v", err)
	}
}

func TestFetchEndpointGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	appsPath := writeAppsJSON(t, validApps)

	_, err := New().Fetch(context.Background(), copilotAccount(appsPath, server.URL))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Reason != core.ReasonEndpointChanged {
		t.Fatalf("expected endpoint_changed, got %v", err)
	}
}
