package fieldwatch

import (
	"log/slog"
	"time"

	"github.com/aretw0/fieldwatch/internal/platform"
	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
)

// --- Types ---

// Engine watches a vault and reacts to front-matter changes.
type Engine = platform.Engine

// EngineState is the observable state of an Engine.
type EngineState = platform.EngineState

// SeedMode controls how opening a document seeds the baseline cache.
type SeedMode = dispatch.SeedMode

const (
	SeedOverwrite = dispatch.SeedOverwrite
	SeedFill      = dispatch.SeedFill
)

// ActionFunc is the signature of a Go function action.
type ActionFunc = actions.Func

// --- Configuration ---

// Option defines a functional option for configuring an Engine.
type Option = platform.Option

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithSeedMode selects how opening a document seeds the baseline cache.
func WithSeedMode(mode SeedMode) Option {
	return platform.WithSeedMode(mode)
}

// WithPattern restricts the engine to documents matching a doublestar pattern.
func WithPattern(pattern string) Option {
	return platform.WithPattern(pattern)
}

// WithVersioning commits every header rewrite with git.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithAutoInit creates the vault if missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithMustExist fails when the vault directory is missing.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithReadOnly refuses content writes.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDebounce sets the quiet period applied to watch events.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithSystemDir sets the hidden directory holding fieldwatch state.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithSettingsFile overrides the settings location.
func WithSettingsFile(path string) Option {
	return platform.WithSettingsFile(path)
}

// WithNotifier receives user-facing notices.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithAction registers a Go function action.
func WithAction(id, name string, fn ActionFunc) Option {
	return platform.WithAction(id, name, fn)
}

// WithWatcherErrorHandler receives runtime watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates an Engine for the vault at path.
func New(path string, opts ...Option) (*Engine, error) {
	return platform.New(path, opts...)
}

// --- Utils ---

// FindVaultRoot looks upwards for a vault marker (.fieldwatch, .fieldwatch.yaml or .git).
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
