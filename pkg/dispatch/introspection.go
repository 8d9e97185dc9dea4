package dispatch

import (
	"github.com/aretw0/introspection"
)

// DispatcherState exposes internal state for observability.
type DispatcherState struct {
	SeedMode     SeedMode `json:"seed_mode"`
	CacheEntries int      `json:"cache_entries"`
	InFlight     int      `json:"in_flight"`
	Opens        int64    `json:"opens"`
	Changes      int64    `json:"changes"`
	Rewrites     int64    `json:"rewrites"`
	Invocations  int64    `json:"invocations"`
	Suppressed   int64    `json:"suppressed"`
	Failures     int64    `json:"failures"`
}

// State implements introspection.Introspectable.
func (d *Dispatcher) State() any {
	return DispatcherState{
		SeedMode:     d.seedMode,
		CacheEntries: d.cache.Len(),
		InFlight:     d.locks.Len(),
		Opens:        d.stats.opens.Load(),
		Changes:      d.stats.changes.Load(),
		Rewrites:     d.stats.rewrites.Load(),
		Invocations:  d.stats.invocations.Load(),
		Suppressed:   d.stats.suppressed.Load(),
		Failures:     d.stats.failures.Load(),
	}
}

// ComponentType implements introspection.Component.
func (d *Dispatcher) ComponentType() string {
	return "dispatcher"
}

var _ introspection.Introspectable = (*Dispatcher)(nil)
var _ introspection.Component = (*Dispatcher)(nil)
