package platform

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/baseline"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
	"github.com/aretw0/fieldwatch/pkg/settings"
)

// New wires an Engine for the vault at path:
//
//	engine, err := fieldwatch.New("./vault", fieldwatch.WithSeedMode(dispatch.SeedFill))
func New(path string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	if !doublestar.ValidatePattern(o.pattern) {
		return nil, fmt.Errorf("invalid pattern %q", o.pattern)
	}

	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}

	repo := fs.NewRepository(fs.Config{
		Path:         abs,
		MustExist:    o.mustExist || !o.autoInit,
		Versioning:   o.versioning,
		AutoInit:     o.autoInit,
		ReadOnly:     o.readOnly,
		Logger:       logger,
		SystemDir:    o.systemDir,
		Debounce:     o.debounce,
		ErrorHandler: o.errorHandler,
	})
	if err := repo.Initialize(context.Background()); err != nil {
		return nil, err
	}

	settingsPath := o.settingsFile
	if settingsPath == "" {
		settingsPath = settings.DefaultPath(abs, o.systemDir)
	}
	store := settings.NewStore(settingsPath, logger)

	registry := actions.NewRegistry(logger)
	for _, a := range o.actions {
		if err := registry.Register(a.id, a.name, a.fn); err != nil {
			return nil, err
		}
	}

	rules := &settingsRules{store: store, registry: registry, vault: abs}
	cache := baseline.New()

	dispatcher, err := dispatch.New(dispatch.Config{
		Cache:    cache,
		Rules:    rules,
		Content:  repo,
		Actions:  registry,
		Notifier: o.notifier,
		Logger:   logger,
		SeedMode: o.seedMode,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		Path:       abs,
		logger:     logger,
		pattern:    o.pattern,
		repo:       repo,
		store:      store,
		registry:   registry,
		rules:      rules,
		cache:      cache,
		dispatcher: dispatcher,
	}, nil
}

// settingsRules reads the settings file on every dispatch and keeps the
// registry's command actions in step with it.
type settingsRules struct {
	store    *settings.Store
	registry *actions.Registry
	vault    string
}

func (s *settingsRules) Rules(ctx context.Context) (core.RuleSet, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return core.RuleSet{}, err
	}

	defs := make([]actions.Definition, len(st.Actions))
	for i, def := range st.Actions {
		switch {
		case def.Dir == "":
			def.Dir = s.vault
		case !filepath.IsAbs(def.Dir):
			def.Dir = filepath.Join(s.vault, def.Dir)
		}
		defs[i] = def
	}
	if err := s.registry.SyncCommands(defs); err != nil {
		return core.RuleSet{}, fmt.Errorf("invalid actions in %s: %w", s.store.Path, err)
	}
	return st.RuleSet(), nil
}
