package runtime

import (
	"sort"
	"sync"
)

// Registry — the shared symbol map. One instance is injected into the
// socket fan-in, the worker pool and the regulator; mutations of the active
// set go through the registry mutex.
type Registry struct {
	mu          sync.RWMutex
	seriesLimit int
	symbols     map[string]*SymbolState
	active      map[string]bool
}

func NewRegistry(seriesLimit int) *Registry {
	return &Registry{
		seriesLimit: seriesLimit,
		symbols:     make(map[string]*SymbolState),
		active:      make(map[string]bool),
	}
}

// Ensure returns the state for symbol, creating it when first seen.
func (r *Registry) Ensure(symbol string) *SymbolState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.symbols[symbol]
	if !ok {
		st = newSymbolState(symbol, r.seriesLimit)
		r.symbols[symbol] = st
	}
	return st
}

func (r *Registry) Get(symbol string) (*SymbolState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.symbols[symbol]
	return st, ok
}

func (r *Registry) Activate(symbol string) {
	r.mu.Lock()
	r.active[symbol] = true
	r.mu.Unlock()
}

func (r *Registry) Deactivate(symbol string) {
	r.mu.Lock()
	delete(r.active, symbol)
	r.mu.Unlock()
}

func (r *Registry) IsActive(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[symbol]
}

// ActiveSymbols returns the active set sorted, so connection shards are
// stable between reconnect cycles.
func (r *Registry) ActiveSymbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.active))
	for s := range r.active {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// InactiveSymbols returns known symbols not currently active.
func (r *Registry) InactiveSymbols() []string {
	r.mu.RLock()
	out := make([]string, 0)
	for s := range r.symbols {
		if !r.active[s] {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// States snapshots every known symbol state.
func (r *Registry) States() []*SymbolState {
	r.mu.RLock()
	out := make([]*SymbolState, 0, len(r.symbols))
	for _, st := range r.symbols {
		out = append(out, st)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
