package platform

import (
	"fmt"

	"github.com/aretw0/introspection"

	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/baseline"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
)

// EngineState aggregates the state of every engine component.
type EngineState struct {
	Path       string                   `json:"path"`
	Pattern    string                   `json:"pattern"`
	Settings   string                   `json:"settings"`
	Running    bool                     `json:"running"`
	Handled    int64                    `json:"events_handled"`
	Repository fs.RepositoryState       `json:"repository"`
	Cache      baseline.CacheState      `json:"cache"`
	Dispatcher dispatch.DispatcherState `json:"dispatcher"`
	Actions    actions.RegistryState    `json:"actions"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	return EngineState{
		Path:       e.Path,
		Pattern:    e.pattern,
		Settings:   e.store.Path,
		Running:    e.running.Load(),
		Handled:    e.handled.Load(),
		Repository: e.repo.State().(fs.RepositoryState),
		Cache:      e.cache.State().(baseline.CacheState),
		Dispatcher: e.dispatcher.State().(dispatch.DispatcherState),
		Actions:    e.registry.State().(actions.RegistryState),
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "engine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)

// Diagram renders the engine topology as a Mermaid tree.
func (e *Engine) Diagram() string {
	config := introspection.DefaultDiagramConfig()
	config.SecondaryID = "engine"
	config.SecondaryLabel = "Engine Topology"
	return introspection.TreeDiagram(buildTree(e.State().(EngineState)), config)
}

// diagramNode follows the tree shape expected by introspection.TreeDiagram.
// Status must be one of the classes of introspection.DefaultStyles.
type diagramNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []diagramNode
}

func buildTree(state EngineState) diagramNode {
	status := "suspended"
	if state.Running {
		status = "running"
	}
	watcherStatus := "stopped"
	if state.Repository.WatcherActive {
		watcherStatus = "running"
	}

	return diagramNode{
		Name:   "Engine",
		Status: status,
		Metadata: map[string]string{
			"type":    "process",
			"path":    state.Path,
			"pattern": state.Pattern,
		},
		Children: []diagramNode{
			{
				Name:   "Repository",
				Status: "running",
				Metadata: map[string]string{
					"type":   "container",
					"writes": fmt.Sprintf("%d", state.Repository.Writes),
				},
				Children: []diagramNode{
					{
						Name:     "Watcher",
						Status:   watcherStatus,
						Metadata: map[string]string{"type": "goroutine"},
					},
				},
			},
			{
				Name:   "Dispatcher",
				Status: status,
				Metadata: map[string]string{
					"type":      "process",
					"seed_mode": string(state.Dispatcher.SeedMode),
					"rewrites":  fmt.Sprintf("%d", state.Dispatcher.Rewrites),
					"invoked":   fmt.Sprintf("%d", state.Dispatcher.Invocations),
					"failures":  fmt.Sprintf("%d", state.Dispatcher.Failures),
				},
				Children: []diagramNode{
					{
						Name:   "Baseline Cache",
						Status: "running",
						Metadata: map[string]string{
							"type":      "container",
							"entries":   fmt.Sprintf("%d", state.Cache.Entries),
							"documents": fmt.Sprintf("%d", state.Cache.Documents),
						},
					},
					{
						Name:   "Actions",
						Status: "running",
						Metadata: map[string]string{
							"type":  "container",
							"count": fmt.Sprintf("%d", len(state.Actions.Actions)),
						},
					},
				},
			},
		},
	}
}
