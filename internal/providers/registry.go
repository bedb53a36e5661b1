package providers

import (
	"github.com/janekbaraniewski/agentquota/internal/core"
	"github.com/janekbaraniewski/agentquota/internal/providers/claude"
	"github.com/janekbaraniewski/agentquota/internal/providers/codex"
	"github.com/janekbaraniewski/agentquota/internal/providers/copilot"
	"github.com/janekbaraniewski/agentquota/internal/providers/gemini"
)

// AllProviders lists every built-in provider in display order.
func AllProviders() []core.Provider {
	return []core.Provider{
		claude.New(),
		codex.New(),
		copilot.New(),
		gemini.New(),
	}
}
