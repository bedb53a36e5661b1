package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/janekbaraniewski/agentquota/internal/appupdate"
	"github.com/janekbaraniewski/agentquota/internal/config"
	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/providers"
	"github.com/janekbaraniewski/agentquota/internal/tui"
	"github.com/janekbaraniewski/agentquota/internal/version"
	"github.com/spf13/cobra"
)

type statusFlags struct {
	jsonOut        bool
	providerIDs    []string
	timeoutSeconds int
	noColor        bool
}

func main() {
	if os.Getenv("AGENTQUOTA_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	var flags statusFlags

	root := &cobra.Command{
		Use:   "agentquota",
		Short: "agentquota reports rate-limit and quota status across AI coding-assistant accounts.",
		Run: func(cmd *cobra.Command, _ []string) {
			runStatus(cmd.Context(), cfg, flags)
		},
	}
	root.Flags().BoolVar(&flags.jsonOut, "json", false, "emit the full result map as JSON")
	root.Flags().StringSliceVar(&flags.providerIDs, "provider", nil, "limit to specific providers (repeatable)")
	root.Flags().IntVar(&flags.timeoutSeconds, "timeout", 0, "per-provider fetch timeout in seconds")
	root.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newWatchCmd(cfg))
	root.AddCommand(newMCPCmd(cfg))
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildEngine wires every built-in provider plus any per-provider
// overrides from the settings file.
func buildEngine(cfg config.Config) *core.Engine {
	engine := core.NewEngine(time.Duration(cfg.TimeoutSeconds) * time.Second)
	for _, p := range providers.AllProviders() {
		engine.RegisterProvider(p)
		engine.SetAccount(cfg.Account(p.ID()))
	}
	return engine
}

func fetchOptions(cfg config.Config, flags statusFlags) core.FetchOptions {
	opts := core.FetchOptions{Providers: flags.providerIDs}
	if len(opts.Providers) == 0 {
		opts.Providers = cfg.Providers
	}
	if flags.timeoutSeconds > 0 {
		opts.Timeout = time.Duration(flags.timeoutSeconds) * time.Second
	}
	return opts
}

func runStatus(ctx context.Context, cfg config.Config, flags statusFlags) {
	engine := buildEngine(cfg)
	opts := fetchOptions(cfg, flags)

	results, summary := engine.FetchAll(ctx, opts)

	if flags.jsonOut {
		printJSON(results, summary)
	} else {
		order := opts.Providers
		if len(order) == 0 {
			order = engine.ProviderIDs()
		}
		rows := core.BuildRows(results, order, time.Now())
		styler := tui.UrgencyStyler(colorEnabled(cfg, flags))
		fmt.Println(core.FormatTable(rows, styler))
		fmt.Println(summary.Message)
	}

	if core.HasErrors(results) {
		os.Exit(1)
	}
}

func printJSON(results map[string]core.ProviderResult, summary core.GlobalSummary) {
	payload := struct {
		Providers map[string]core.ProviderResult `json:"providers"`
		Summary   core.GlobalSummary             `json:"summary"`
	}{results, summary}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func colorEnabled(cfg config.Config, flags statusFlags) bool {
	if flags.noColor || cfg.NoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and check for a newer release",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println("agentquota", version.String())

			res, err := appupdate.Check(cmd.Context(), appupdate.CheckOptions{
				CurrentVersion: version.Version,
			})
			if err != nil {
				log.Printf("update check failed: %v", err)
				return
			}
			if res.UpdateAvailable {
				fmt.Printf("Update available: %s → %s\n", res.CurrentVersion, res.LatestVersion)
				fmt.Printf("Upgrade: %s\n", res.UpgradeHint)
			}
		},
	}
}
