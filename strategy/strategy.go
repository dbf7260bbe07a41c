// Package strategy defines the contract signal generators implement and a
// registry the engine resolves them from. Signal quality is the strategy's
// business; the core treats every signal as untrusted input.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"predictor/market"
)

// Strategy produces at most one candidate signal per poll of a market.
type Strategy interface {
	// ID identifies the strategy in orders, journal rows and aggregates.
	ID() string

	// Evaluate inspects the current quote and either claims an edge or
	// declines (ok=false). It must not place orders itself.
	Evaluate(ctx context.Context, quote market.Quote) (sig market.Signal, ok bool, err error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]func() Strategy)
)

// Register makes a strategy constructor available by name.
func Register(name string, ctor func() Strategy) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// ByName builds a registered strategy.
func ByName(name string) (Strategy, error) {
	mu.RLock()
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists registered strategy names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
