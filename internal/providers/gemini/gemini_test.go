package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
)

var testClientInfo = ClientInfo{ID: "test-client", Secret: "test-secret"}

func writeGeminiCreds(t *testing.T, creds oauthCreds) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oauth_creds.json")
	data, err := json.Marshal(creds)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// newCodeAssistServer serves the token refresh plus both Code Assist
// methods from one mux, the way the real endpoints hang off one host.
func newCodeAssistServer(t *testing.T, buckets string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.FormValue("client_id"); got != testClientInfo.ID {
			t.Errorf("unexpected client_id %q", got)
		}
		if got := r.FormValue("refresh_token"); got != "refresh-g" {
			t.Errorf("unexpected refresh_token %q", got)
		}
		fmt.Fprint(w, `{"access_token":"tok-g","expires_in":3599}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-g" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":loadCodeAssist"):
			fmt.Fprint(w, `{"cloudaicompanionProject":"proj-1"}`)
		case strings.HasSuffix(r.URL.Path, ":retrieveUserUsage"):
			var req retrieveUserUsageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatal(err)
			}
			if req.Project != "proj-1" {
				t.Errorf("expected resolved project, got %q", req.Project)
			}
			fmt.Fprintf(w, `{"buckets":%s}`, buckets)
		default:
			http.NotFound(w, r)
		}
	})
	return httptest.NewServer(mux)
}

func geminiAccount(credsPath, baseURL string) core.AccountConfig {
	return core.AccountConfig{
		ID:       "gemini-test",
		Provider: "gemini",
		ExtraData: map[string]string{
			"creds_path":     credsPath,
			"token_url":      baseURL + "/token",
			"usage_base_url": baseURL,
		},
	}
}

func TestFetchBuildsTracks(t *testing.T) {
	reset := time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339)
	server := newCodeAssistServer(t, fmt.Sprintf(
		`[{"modelId":"gemini-2.5-pro","remainingFraction":0.25,"resetTime":%q},
		  {"modelId":"gemini-2.5-flash","remainingFraction":0.9,"resetTime":%q},
		  {"tokenType":"standard"}]`, reset, reset))
	defer server.Close()

	credsPath := writeGeminiCreds(t, oauthCreds{RefreshToken: "refresh-g"})
	p := NewWithClient(testClientInfo, nil)

	usage, err := p.Fetch(context.Background(), geminiAccount(credsPath, server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(usage.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(usage.Tracks))
	}
	pro := usage.Tracks["gemini-2.5-pro"]
	if pro.UsedPercent != 75 {
		t.Errorf("expected pro at 75%% used, got %v", pro.UsedPercent)
	}
	if pro.ResetAt == nil {
		t.Error("expected pro reset time")
	}
	flash := usage.Tracks["gemini-2.5-flash"]
	if math.Abs(flash.UsedPercent-10) > 1e-9 {
		t.Errorf("expected flash near 10%% used, got %v", flash.UsedPercent)
	}
}

func TestFetchNoBucketsIsEmpty(t *testing.T) {
	server := newCodeAssistServer(t, `[]`)
	defer server.Close()

	credsPath := writeGeminiCreds(t, oauthCreds{RefreshToken: "refresh-g"})
	p := NewWithClient(testClientInfo, nil)

	usage, err := p.Fetch(context.Background(), geminiAccount(credsPath, server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !usage.Empty() {
		t.Errorf("expected empty usage, got %+v", usage)
	}
}

func TestFetchMissingCredentials(t *testing.T) {
	credsPath := filepath.Join(t.TempDir(), "nope.json")
	p := NewWithClient(testClientInfo, nil)

	_, err := p.Fetch(context.Background(), geminiAccount(credsPath, "http://unused.invalid"))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Reason != core.ReasonNoCredentials {
		t.Fatalf("expected no_credentials, got %v", err)
	}
}

func TestFetchRefreshFailureIsTokenExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	credsPath := writeGeminiCreds(t, oauthCreds{RefreshToken: "refresh-revoked"})
	p := NewWithClient(testClientInfo, nil)

	_, err := p.Fetch(context.Background(), geminiAccount(credsPath, server.URL))
	var fe *core.FetchError
	if !errors.As(err, &fe) || fe.Reason != core.ReasonTokenExpired {
		t.Fatalf("expected token_expired, got %v", err)
	}
}

func TestFetchStoredTokenWithoutRefresh(t *testing.T) {
	// No refresh token but a still-valid access token: skip the refresh.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-stored" {
			t.Errorf("expected stored token, got %q", got)
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ":loadCodeAssist"):
			fmt.Fprint(w, `{"cloudaicompanionProject":"proj-1"}`)
		case strings.HasSuffix(r.URL.Path, ":retrieveUserUsage"):
			fmt.Fprint(w, `{"buckets":[{"modelId":"gemini-2.5-pro","remainingFraction":0.5}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	credsPath := writeGeminiCreds(t, oauthCreds{
		AccessToken: "tok-stored",
		ExpiryDate:  time.Now().Add(time.Hour).UnixMilli(),
	})
	p := NewWithClient(testClientInfo, nil)

	usage, err := p.Fetch(context.Background(), geminiAccount(credsPath, server.URL))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if usage.Tracks["gemini-2.5-pro"].UsedPercent != 50 {
		t.Errorf("expected 50%% used, got %+v", usage.Tracks)
	}
}
