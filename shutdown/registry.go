package shutdown

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"rawdevelop/core"
)

// Hook priorities. Lower values run first.
const (
	PriorityHTTPServer   = 10
	PriorityRenders      = 20
	PriorityHistoryStore = 30
	PriorityTempExports  = 40
	PriorityLogger       = 90
)

type hook struct {
	name     string
	priority int
	fn       core.ShutdownFunc
}

// Hooks is an ordered set of cleanup functions. Hooks with equal priority
// run in registration order.
type Hooks struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

// NewHooks returns an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Add registers fn. Adding after Run is a no-op.
func (h *Hooks) Add(name string, priority int, fn core.ShutdownFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ran {
		return
	}
	h.hooks = append(h.hooks, hook{name: name, priority: priority, fn: fn})
}

func (h *Hooks) sorted() []hook {
	out := slices.Clone(h.hooks)
	slices.SortStableFunc(out, func(a, b hook) int { return a.priority - b.priority })
	return out
}

// Run calls every hook in priority order, even after failures, and joins
// their errors. Only the first call does anything.
func (h *Hooks) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return nil
	}
	h.ran = true
	ordered := h.sorted()
	h.mu.Unlock()

	var errs []error
	for _, hk := range ordered {
		if err := hk.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
		}
	}
	return errors.Join(errs...)
}

// Names lists hook names in the order Run would call them.
func (h *Hooks) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ordered := h.sorted()
	names := make([]string, len(ordered))
	for i, hk := range ordered {
		names[i] = hk.name
	}
	return names
}
