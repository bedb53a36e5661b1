// Package tui holds the watch-mode terminal UI: a status table that
// refreshes on an interval, on keypress, and when a vendor CLI writes
// new credential or session data.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/janekbaraniewski/agentquota/internal/core"
)

// Model drives the watch loop. It owns no provider state beyond the
// engine handle; every refresh is a full orchestrated fetch.
type Model struct {
	engine  *core.Engine
	opts    core.FetchOptions
	order   []string
	styler  core.CellStyler
	refresh time.Duration

	table    string
	summary  core.GlobalSummary
	fetching bool
	lastAt   time.Time
}

func NewModel(engine *core.Engine, opts core.FetchOptions, order []string, styler core.CellStyler, refresh time.Duration) Model {
	return Model{
		engine:   engine,
		opts:     opts,
		order:    order,
		styler:   styler,
		refresh:  refresh,
		fetching: true,
	}
}

type fetchDoneMsg struct {
	results map[string]core.ProviderResult
	summary core.GlobalSummary
}

type refreshTickMsg time.Time

// RefreshMsg forces an immediate re-fetch; the filesystem watcher sends
// it when a vendor directory changes.
type RefreshMsg struct{}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m Model) fetchCmd() tea.Cmd {
	engine, opts := m.engine, m.opts
	return func() tea.Msg {
		results, summary := engine.FetchAll(context.Background(), opts)
		return fetchDoneMsg{results, summary}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.fetching {
				m.fetching = true
				return m, m.fetchCmd()
			}
		}

	case fetchDoneMsg:
		m.fetching = false
		m.lastAt = time.Now()
		rows := core.BuildRows(msg.results, m.order, m.lastAt)
		m.table = core.FormatTable(rows, m.styler)
		m.summary = msg.summary
		return m, nil

	case refreshTickMsg:
		cmds := []tea.Cmd{m.tickCmd()}
		if !m.fetching {
			m.fetching = true
			cmds = append(cmds, m.fetchCmd())
		}
		return m, tea.Batch(cmds...)

	case RefreshMsg:
		if !m.fetching {
			m.fetching = true
			return m, m.fetchCmd()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	if m.table == "" {
		b.WriteString("Fetching provider status...\n")
	} else {
		b.WriteString(m.table)
		b.WriteByte('\n')
		b.WriteString(m.summary.Message)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	status := "waiting for first fetch"
	if !m.lastAt.IsZero() {
		status = "last update " + m.lastAt.Format("15:04:05")
	}
	if m.fetching {
		status += " (refreshing)"
	}
	b.WriteString(statusLineStyle.Render(fmt.Sprintf("%s | r to refresh, q to quit", status)))
	b.WriteByte('\n')
	return b.String()
}
