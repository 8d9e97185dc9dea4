package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
)

// options holds the internal configuration of an Engine.
type options struct {
	logger       *slog.Logger
	seedMode     dispatch.SeedMode
	pattern      string
	versioning   bool
	autoInit     bool
	mustExist    bool
	readOnly     bool
	debounce     time.Duration
	systemDir    string
	settingsFile string
	notifier     core.Notifier
	errorHandler func(error)
	actions      []hostAction
}

type hostAction struct {
	id   string
	name string
	fn   actions.Func
}

// Option defines a functional option for configuring an Engine.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		seedMode:  dispatch.SeedOverwrite,
		pattern:   fs.DefaultPattern,
		autoInit:  true,
		systemDir: ".fieldwatch",
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSeedMode selects how Open seeds the baseline cache.
func WithSeedMode(mode dispatch.SeedMode) Option {
	return func(o *options) {
		o.seedMode = mode
	}
}

// WithPattern restricts watching and seeding to documents matching a
// doublestar pattern relative to the vault. Defaults to "**/*.md".
func WithPattern(pattern string) Option {
	return func(o *options) {
		if pattern != "" {
			o.pattern = pattern
		}
	}
}

// WithVersioning commits every header rewrite with git.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.versioning = enabled
	}
}

// WithAutoInit creates the vault directory (and git repository when
// versioning) if missing. Enabled by default.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithMustExist fails construction when the vault directory is missing.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithReadOnly refuses content writes. Header rules then report failures.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithDebounce sets the quiet period applied to watch events per document.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithSystemDir sets the hidden directory holding fieldwatch state.
// Defaults to ".fieldwatch".
func WithSystemDir(name string) Option {
	return func(o *options) {
		if name != "" {
			o.systemDir = name
		}
	}
}

// WithSettingsFile overrides the settings location.
// Defaults to <vault>/<system dir>/settings.yaml.
func WithSettingsFile(path string) Option {
	return func(o *options) {
		o.settingsFile = path
	}
}

// WithNotifier receives user-facing notices. Defaults to logging them.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithAction registers a Go function action. Functions take precedence
// over command actions with the same id.
func WithAction(id, name string, fn actions.Func) Option {
	return func(o *options) {
		o.actions = append(o.actions, hostAction{id: id, name: name, fn: fn})
	}
}

// WithWatcherErrorHandler receives runtime watcher errors in addition to logging.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
