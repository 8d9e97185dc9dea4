package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aretw0/fieldwatch/pkg/actions"
	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	lcadapter "github.com/aretw0/fieldwatch/pkg/adapters/lifecycle"
	"github.com/aretw0/fieldwatch/pkg/baseline"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
	"github.com/aretw0/fieldwatch/pkg/settings"
)

// Engine watches a vault and dispatches front-matter changes to the rules
// of its settings file.
type Engine struct {
	Path string

	logger     *slog.Logger
	pattern    string
	repo       *fs.Repository
	store      *settings.Store
	registry   *actions.Registry
	rules      *settingsRules
	cache      *baseline.Cache
	dispatcher *dispatch.Dispatcher

	running atomic.Bool
	handled atomic.Int64
}

// Repository returns the vault adapter.
func (e *Engine) Repository() *fs.Repository { return e.repo }

// Settings returns the settings store backing the rules.
func (e *Engine) Settings() *settings.Store { return e.store }

// Registry returns the action registry.
func (e *Engine) Registry() *actions.Registry { return e.registry }

// Cache returns the baseline cache.
func (e *Engine) Cache() *baseline.Cache { return e.cache }

// Reload reads the settings file and refreshes the command actions.
func (e *Engine) Reload(ctx context.Context) (core.RuleSet, error) {
	return e.rules.Rules(ctx)
}

// Open reads the document and seeds its baselines.
func (e *Engine) Open(ctx context.Context, id string) (dispatch.Report, error) {
	doc, err := e.repo.Get(ctx, id)
	if err != nil {
		return dispatch.Report{DocumentID: id}, err
	}
	return e.dispatcher.Open(ctx, doc.ID, doc.Metadata), nil
}

// Change reads the document and dispatches its current front-matter.
func (e *Engine) Change(ctx context.Context, id string) (dispatch.Report, error) {
	doc, err := e.repo.Get(ctx, id)
	if err != nil {
		return dispatch.Report{DocumentID: id}, err
	}
	return e.dispatcher.Change(ctx, doc.ID, doc.Metadata), nil
}

// Seed opens every document matching the engine pattern and returns how
// many were opened.
func (e *Engine) Seed(ctx context.Context) (int, error) {
	docs, err := e.repo.ListMatching(ctx, e.pattern)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		e.dispatcher.Open(ctx, doc.ID, doc.Metadata)
	}
	return len(docs), nil
}

// Run watches the vault, seeds every existing document and dispatches
// changes until ctx is cancelled. It returns nil on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine is already running")
	}
	defer e.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := e.repo.Watch(runCtx, e.pattern)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	source := lcadapter.NewSource(events)
	if err := source.Start(runCtx); err != nil {
		return err
	}

	if _, err := e.Reload(ctx); err != nil {
		e.logger.Warn("settings could not be loaded", "path", e.store.Path, "error", err)
	}

	n, err := e.Seed(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	e.logger.Info("watching vault", "path", e.Path, "pattern", e.pattern, "documents", n)

	for ev := range source.Events() {
		event, ok := ev.(core.Event)
		if !ok {
			continue
		}
		e.handle(runCtx, event)
	}

	if ctx.Err() != nil {
		return nil
	}
	return errors.New("watcher stopped unexpectedly")
}

func (e *Engine) handle(ctx context.Context, event core.Event) {
	e.handled.Add(1)

	switch event.Type {
	case core.EventCreate, core.EventModify:
		report, err := e.Change(ctx, event.ID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				e.logger.Debug("document vanished before dispatch", "id", event.ID)
				return
			}
			e.logger.Warn("failed to read document", "id", event.ID, "error", err)
			return
		}
		e.logger.Debug("dispatched",
			"id", event.ID,
			"event", event.Type,
			"rewritten", report.Count(dispatch.OutcomeRewritten),
			"invoked", report.Count(dispatch.OutcomeInvoked),
			"failed", report.Count(dispatch.OutcomeFailed)+len(report.Failures),
		)
	case core.EventDelete:
		e.logger.Debug("ignoring delete", "id", event.ID)
	}
}
