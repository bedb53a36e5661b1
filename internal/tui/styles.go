package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/janekbaraniewski/agentquota/internal/core"
)

var (
	colorOK    = lipgloss.Color("#A6E3A1")
	colorWarn  = lipgloss.Color("#F9E2AF")
	colorCrit  = lipgloss.Color("#F38BA8")
	colorAuth  = lipgloss.Color("#FAB387")
	colorLogin = lipgloss.Color("#89B4FA")
	colorDim   = lipgloss.Color("#585B70")
)

var urgencyStyles = map[core.Urgency]lipgloss.Style{
	core.UrgencyCanUse:        lipgloss.NewStyle().Foreground(colorOK),
	core.UrgencyLowQuota:      lipgloss.NewStyle().Foreground(colorWarn),
	core.UrgencyWaitReset:     lipgloss.NewStyle().Foreground(colorAuth),
	core.UrgencyLoginRequired: lipgloss.NewStyle().Foreground(colorLogin),
	core.UrgencyFetchFailed:   lipgloss.NewStyle().Foreground(colorCrit).Bold(true),
}

var statusLineStyle = lipgloss.NewStyle().Foreground(colorDim)

// UrgencyStyler colors the STATUS column of the table by urgency; the
// other columns stay plain so output remains greppable. A nil styler is
// returned when color is disabled so the table renders bare.
func UrgencyStyler(enabled bool) core.CellStyler {
	if !enabled {
		return nil
	}
	return func(row core.DisplayRow, col int, text string) string {
		if col != 1 {
			return text
		}
		if style, ok := urgencyStyles[row.Urgency]; ok {
			return style.Render(text)
		}
		return text
	}
}
