// Package shared holds the HTTP plumbing common to provider fetchers,
// including the single place where vendor HTTP failures are mapped onto
// reason codes.
package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/core"
)

const maxErrorBodySize = 256

// DefaultClient is the client providers use unless a test injects one.
var DefaultClient = &http.Client{Timeout: 30 * time.Second}

// DoJSON performs a request and decodes the JSON response, converting
// every failure into a structured *core.FetchError at this boundary:
// 401/403 auth_failed, 404/410 endpoint_changed, other non-2xx api_error,
// transport failures network_error, deadline timeout, bad JSON
// parse_error.
func DoJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body io.Reader, out any) error {
	if client == nil {
		client = DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return core.Errf(core.ReasonUnknown, "creating request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.Errf(core.ReasonTimeout, "request to %s timed out", url)
		}
		return core.Errf(core.ReasonNetworkError, "request to %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.Errf(core.ReasonAuthFailed, "HTTP %d from %s", resp.StatusCode, url)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return core.Errf(core.ReasonEndpointChanged, "HTTP %d from %s", resp.StatusCode, url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return core.Errf(core.ReasonAPIError, "HTTP %d from %s: %s", resp.StatusCode, url, errorBody(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return core.Errf(core.ReasonParseError, "parsing response from %s: %v", url, err)
	}
	return nil
}

// GetJSON is DoJSON for a plain GET.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	return DoJSON(ctx, client, http.MethodGet, url, headers, nil, out)
}

// PostJSON marshals in as the request body and decodes the JSON response.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return core.Errf(core.ReasonUnknown, "encoding request for %s: %v", url, err)
	}
	merged := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		merged[k] = v
	}
	return DoJSON(ctx, client, http.MethodPost, url, merged, bytes.NewReader(body), out)
}

// PostForm posts url-encoded values and decodes the JSON response.
func PostForm(ctx context.Context, client *http.Client, url string, form string, out any) error {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	return DoJSON(ctx, client, http.MethodPost, url, headers, strings.NewReader(form), out)
}

func errorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	return strings.TrimSpace(string(b))
}

// Bearer formats an Authorization header value.
func Bearer(token string) string {
	return fmt.Sprintf("Bearer %s", token)
}
