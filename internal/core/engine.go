package core

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultFetchTimeout = 15 * time.Second

// Engine orchestrates one fetch across all requested providers. Fetches
// are independent, read-only and issued concurrently; the engine waits for
// every provider to settle before classifying anything, so one provider's
// failure never affects another. There is no retry: a failure is reported
// once, immediately.
type Engine struct {
	mu        sync.RWMutex
	providers map[string]Provider
	accounts  map[string]AccountConfig
	timeout   time.Duration
}

// FetchOptions selects which providers to query and how long each fetch
// may take. Zero values mean "all registered" and the engine default.
type FetchOptions struct {
	Providers []string
	Timeout   time.Duration
}

func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Engine{
		providers: make(map[string]Provider),
		accounts:  make(map[string]AccountConfig),
		timeout:   timeout,
	}
}

func (e *Engine) RegisterProvider(p Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers[p.ID()] = p
}

// SetAccount attaches per-provider configuration (path overrides etc.).
func (e *Engine) SetAccount(acct AccountConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accounts[acct.Provider] = acct
}

// ProviderIDs returns the registered provider IDs, sorted.
func (e *Engine) ProviderIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := lo.Keys(e.providers)
	sort.Strings(ids)
	return ids
}

// FetchAll fans out over the requested providers, waits for all of them
// to settle, and returns the classified result per provider plus the
// global summary. Unknown provider names classify as errors rather than
// aborting the whole run.
func (e *Engine) FetchAll(ctx context.Context, opts FetchOptions) (map[string]ProviderResult, GlobalSummary) {
	requested := opts.Providers
	if len(requested) == 0 {
		requested = e.ProviderIDs()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	type settled struct {
		id     string
		result ProviderResult
	}

	results := make(chan settled, len(requested))
	var wg sync.WaitGroup

	for _, id := range requested {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			e.mu.RLock()
			provider, ok := e.providers[id]
			acct := e.accounts[id]
			e.mu.RUnlock()

			if !ok {
				results <- settled{id, ClassifyResult(nil,
					Errf(ReasonUnknown, "no provider registered for %q", id), time.Now())}
				return
			}

			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			usage, err := provider.Fetch(fetchCtx, acct)
			if err != nil {
				log.Printf("engine: %s fetch failed: %v", id, err)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = Errf(ReasonTimeout, "%s fetch timed out after %s", id, timeout)
			}
			results <- settled{id, ClassifyResult(usage, err, time.Now())}
		}(id)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]ProviderResult, len(requested))
	for r := range results {
		out[r.id] = r.result
	}

	return out, Summarize(out)
}
