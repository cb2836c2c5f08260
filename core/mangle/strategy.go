package mangle

import (
	"fmt"
	"math/rand"
	"sync"
)

// Strategy rewrites one regular block at a time. It may split the block,
// reorder or weave jumps between the fragments, and must store the result
// with Block.SetFragments. Control leaving the block must still reach the
// block's original successor.
type Strategy interface {
	Name() string
	Mangle(ctx *Context, block *Block) error
}

type funcStrategy struct {
	name string
	fn   func(ctx *Context, block *Block) error
}

func (s *funcStrategy) Name() string { return s.name }

func (s *funcStrategy) Mangle(ctx *Context, block *Block) error { return s.fn(ctx, block) }

// NewStrategy wraps fn as a named strategy.
func NewStrategy(name string, fn func(ctx *Context, block *Block) error) Strategy {
	return &funcStrategy{name: name, fn: fn}
}

// Registry is the pool of strategies the dispatcher draws from. Lookups
// are safe while workers run; registration is expected to happen first.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	byName     map[string]Strategy
}

// NewRegistry returns a registry holding strategies in the given order.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{byName: make(map[string]Strategy)}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s. Names are unique.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = make(map[string]Strategy)
	}
	if _, ok := r.byName[s.Name()]; ok {
		return fmt.Errorf("strategy %q already registered", s.Name())
	}
	r.byName[s.Name()] = s
	r.strategies = append(r.strategies, s)
	return nil
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// Names lists the strategies in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Get returns the strategy called name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Subset returns a registry holding only the named strategies, in the order
// given. An empty list returns r itself.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	sub := &Registry{byName: make(map[string]Strategy)}
	for _, name := range names {
		s, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
		if err := sub.Register(s); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Pick draws one strategy uniformly, or nil when the pool is empty.
func (r *Registry) Pick(rng *rand.Rand) Strategy {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.strategies) == 0 {
		return nil
	}
	return r.strategies[rng.Intn(len(r.strategies))]
}
