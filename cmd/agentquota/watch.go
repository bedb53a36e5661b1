package main

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/janekbaraniewski/agentquota/internal/config"
	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/tui"
	"github.com/spf13/cobra"
)

func newWatchCmd(cfg config.Config) *cobra.Command {
	var flags statusFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live status table that refreshes on an interval and on credential changes",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWatch(cfg, flags)
		},
	}
	cmd.Flags().StringSliceVar(&flags.providerIDs, "provider", nil, "limit to specific providers (repeatable)")
	cmd.Flags().IntVar(&flags.timeoutSeconds, "timeout", 0, "per-provider fetch timeout in seconds")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	return cmd
}

// vendorDirs are the local directories the vendor CLIs write credentials
// and session data into; a change in any of them triggers a refresh.
func vendorDirs() []string {
	return []string{
		core.HomePath(".claude"),
		core.HomePath(".codex"),
		core.HomePath(".gemini"),
		core.HomePath(".config", "github-copilot"),
	}
}

func runWatch(cfg config.Config, flags statusFlags) error {
	engine := buildEngine(cfg)
	opts := fetchOptions(cfg, flags)

	order := opts.Providers
	if len(order) == 0 {
		order = engine.ProviderIDs()
	}

	model := tui.NewModel(
		engine,
		opts,
		order,
		tui.UrgencyStyler(colorEnabled(cfg, flags)),
		time.Duration(cfg.RefreshIntervalSeconds)*time.Second,
	)

	program := tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tui.WatchDirs(ctx, program, vendorDirs()); err != nil {
		log.Printf("watch: filesystem triggers disabled: %v", err)
	}

	_, err := program.Run()
	return err
}
