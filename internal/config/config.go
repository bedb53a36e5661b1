// Package config loads the settings file. All fields are optional; a
// missing file means pure defaults, so the tool works with zero setup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/janekbaraniewski/agentquota/internal/core"
)

type Config struct {
	// Providers narrows which providers run; empty means all built-ins.
	Providers []string `json:"providers,omitempty"`

	// TimeoutSeconds bounds each provider fetch.
	TimeoutSeconds int `json:"timeout_seconds"`

	// RefreshIntervalSeconds is the watch-mode re-fetch cadence.
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`

	NoColor bool `json:"no_color"`

	// Accounts overrides per-provider paths and endpoints, matched to a
	// provider through AccountConfig.Provider.
	Accounts []core.AccountConfig `json:"accounts,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		TimeoutSeconds:         int(core.DefaultFetchTimeout.Seconds()),
		RefreshIntervalSeconds: 60,
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "agentquota")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentquota")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultConfig().TimeoutSeconds
	}
	if cfg.RefreshIntervalSeconds <= 0 {
		cfg.RefreshIntervalSeconds = DefaultConfig().RefreshIntervalSeconds
	}

	return cfg, nil
}

// Account returns the override entry for a provider, or a zero-value
// AccountConfig bound to that provider when none is configured.
func (c Config) Account(providerID string) core.AccountConfig {
	for _, acct := range c.Accounts {
		if acct.Provider == providerID {
			return acct
		}
	}
	return core.AccountConfig{ID: providerID, Provider: providerID}
}

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
