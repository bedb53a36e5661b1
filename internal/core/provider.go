package core

import (
	"context"
	"os"
	"path/filepath"
)

// AccountConfig carries the local paths and overrides a provider fetcher
// needs. Zero values mean "use the vendor's default location"; tests point
// the paths at fixtures.
type AccountConfig struct {
	ID        string            `json:"id"`
	Provider  string            `json:"provider"`
	ExtraData map[string]string `json:"extra_data,omitempty"` // path/endpoint overrides
}

// Override returns the named ExtraData entry, or fallback when unset.
func (c AccountConfig) Override(key, fallback string) string {
	if v, ok := c.ExtraData[key]; ok && v != "" {
		return v
	}
	return fallback
}

// HomePath joins the user home directory with the given elements.
func HomePath(elem ...string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(append([]string{home}, elem...)...)
}

// ProviderInfo describes a provider for help output and diagnostics.
type ProviderInfo struct {
	Name   string
	DocURL string
}

// Provider is one vendor account whose quota can be queried. Fetch
// returns vendor failures as *FetchError so the result classifier can
// assign a reason code; a nil Usage with nil error means the provider
// affirmatively found nothing to report.
type Provider interface {
	ID() string

	Describe() ProviderInfo

	Fetch(ctx context.Context, acct AccountConfig) (*Usage, error)
}
