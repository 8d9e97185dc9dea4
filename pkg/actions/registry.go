// Package actions implements the registry of invocable actions.
//
// An action is either an external command declared in the settings file or
// a Go function registered by the embedding host. Both are invoked by an
// opaque identifier.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// Func is the signature of an action implementation.
type Func func(ctx context.Context, trigger core.Trigger) error

type entry struct {
	info    core.ActionInfo
	fn      Func
	command bool
}

// Registry maps action identifiers to implementations.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger,
	}
}

// Register adds an action. The name defaults to the id.
func (r *Registry) Register(id, name string, fn Func) error {
	if id == "" {
		return errors.New("action id cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("action %s has no implementation", id)
	}
	if name == "" {
		name = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("action %s already registered", id)
	}
	r.entries[id] = entry{info: core.ActionInfo{ID: id, Name: name}, fn: fn}
	r.order = append(r.order, id)
	return nil
}

// RegisterCommand adds an external command action.
func (r *Registry) RegisterCommand(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if err := r.Register(def.ID, def.Name, CommandFunc(def, r.logger)); err != nil {
		return err
	}
	r.mu.Lock()
	e := r.entries[def.ID]
	e.command = true
	r.entries[def.ID] = e
	r.mu.Unlock()
	return nil
}

// SyncCommands replaces every command action with defs, keeping Go
// function actions. A definition whose id is taken by a Go function is
// skipped with a warning. Nothing changes when a definition is invalid.
func (r *Registry) SyncCommands(defs []Definition) error {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make(map[string]entry, len(r.entries)+len(defs))
	order := make([]string, 0, len(r.order)+len(defs))
	for _, id := range r.order {
		if e := r.entries[id]; !e.command {
			entries[id] = e
			order = append(order, id)
		}
	}

	for _, def := range defs {
		if _, exists := entries[def.ID]; exists {
			if existing := entries[def.ID]; !existing.command {
				r.logger.Warn("command action shadowed by registered function", "action", def.ID)
				continue
			}
			return fmt.Errorf("duplicate action id %s", def.ID)
		}
		name := def.Name
		if name == "" {
			name = def.ID
		}
		entries[def.ID] = entry{
			info:    core.ActionInfo{ID: def.ID, Name: name},
			fn:      CommandFunc(def, r.logger),
			command: true,
		}
		order = append(order, def.ID)
	}

	r.entries = entries
	r.order = order
	return nil
}

// Actions implements core.ActionRegistry. Actions are listed in registration order.
func (r *Registry) Actions(ctx context.Context) []core.ActionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ActionInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].info)
	}
	return out
}

// Lookup returns the description of an action.
func (r *Registry) Lookup(id string) (core.ActionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e.info, ok
}

// Invoke implements core.ActionRegistry. A panicking action is reported as
// an error rather than crashing the caller.
func (r *Registry) Invoke(ctx context.Context, id string, trigger core.Trigger) (err error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownAction, id)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("action %s panicked: %v", id, recovered)
		}
	}()

	r.logger.Debug("invoking action", "action", id, "document", trigger.DocumentID, "field", trigger.Field)
	return e.fn(ctx, trigger)
}

// RegistryState exposes internal state for observability.
type RegistryState struct {
	Actions []string `json:"actions"`
}

// State implements introspection.Introspectable.
func (r *Registry) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryState{Actions: append([]string(nil), r.order...)}
}

// ComponentType implements introspection.Component.
func (r *Registry) ComponentType() string {
	return "action-registry"
}

var _ core.ActionRegistry = (*Registry)(nil)
var _ introspection.Introspectable = (*Registry)(nil)
var _ introspection.Component = (*Registry)(nil)
