// Package dispatch turns document notifications into rule reactions.
//
// Open seeds the baseline cache for a document and never reacts. Change
// compares the document's current metadata against the baseline and, for
// every rule whose field moved, rewrites a header line or invokes an action.
// Action rules stay silent on the first observation of a field; header rules
// do not.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/aretw0/fieldwatch/pkg/baseline"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/header"
)

// SeedMode controls how Open treats existing baselines.
type SeedMode string

const (
	// SeedOverwrite replaces any existing baseline with the value found on open.
	// A change made while the document was closed becomes the new baseline
	// without a reaction.
	SeedOverwrite SeedMode = "overwrite"
	// SeedFill only records baselines for pairs that have none, so a change
	// made while the document was closed is reacted to on the next Change.
	SeedFill SeedMode = "fill"
)

// ParseSeedMode validates a seed mode name. The empty string selects SeedOverwrite.
func ParseSeedMode(s string) (SeedMode, error) {
	switch SeedMode(s) {
	case "", SeedOverwrite:
		return SeedOverwrite, nil
	case SeedFill:
		return SeedFill, nil
	}
	return "", fmt.Errorf("invalid seed mode %q: must be one of overwrite, fill", s)
}

// Config holds the collaborators of a Dispatcher.
type Config struct {
	Cache    *baseline.Cache
	Rules    core.RuleSource
	Content  core.ContentStore
	Actions  core.ActionRegistry
	Notifier core.Notifier
	Logger   *slog.Logger
	SeedMode SeedMode
}

// Dispatcher evaluates watch rules against metadata snapshots.
type Dispatcher struct {
	cache    *baseline.Cache
	rules    core.RuleSource
	content  core.ContentStore
	actions  core.ActionRegistry
	notifier core.Notifier
	logger   *slog.Logger
	seedMode SeedMode
	locks    *keyedMutex
	stats    stats
}

type stats struct {
	opens       atomic.Int64
	changes     atomic.Int64
	rewrites    atomic.Int64
	invocations atomic.Int64
	suppressed  atomic.Int64
	failures    atomic.Int64
}

// New creates a Dispatcher. Cache, Rules, Content and Actions are required.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Cache == nil {
		return nil, errors.New("dispatch: baseline cache is required")
	}
	if cfg.Rules == nil {
		return nil, errors.New("dispatch: rule source is required")
	}
	if cfg.Content == nil {
		return nil, errors.New("dispatch: content store is required")
	}
	if cfg.Actions == nil {
		return nil, errors.New("dispatch: action registry is required")
	}

	mode, err := ParseSeedMode(string(cfg.SeedMode))
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = core.LogNotifier{Logger: logger}
	}

	return &Dispatcher{
		cache:    cfg.Cache,
		rules:    cfg.Rules,
		content:  cfg.Content,
		actions:  cfg.Actions,
		notifier: notifier,
		logger:   logger,
		seedMode: mode,
		locks:    newKeyedMutex(),
	}, nil
}

// Open seeds the baseline of every active, set field of the document.
// It never rewrites headers or invokes actions. A nil snapshot is a no-op.
func (d *Dispatcher) Open(ctx context.Context, documentID string, snapshot core.Metadata) (report Report) {
	report.DocumentID = documentID
	if snapshot == nil {
		return report
	}

	unlock := d.locks.Lock(documentID)
	defer unlock()
	defer d.recoverInto(ctx, &report)

	d.stats.opens.Add(1)

	rules, err := d.rules.Rules(ctx)
	if err != nil {
		d.failDispatch(ctx, &report, fmt.Errorf("loading rules: %w", err))
		return report
	}

	seeded := make(map[string]struct{})
	for _, rule := range rules.All() {
		base := rule.Base()
		if !base.Matches(snapshot) {
			continue
		}
		if _, done := seeded[base.Field]; done {
			continue
		}

		value := snapshot[base.Field]
		switch d.seedMode {
		case SeedFill:
			if !d.cache.SetIfAbsent(documentID, base.Field, value) {
				continue
			}
		default:
			d.cache.Set(documentID, base.Field, value)
		}
		seeded[base.Field] = struct{}{}
	}

	report.Seeded = len(seeded)
	d.logger.Debug("baseline seeded", "document", documentID, "fields", report.Seeded, "mode", d.seedMode)
	return report
}

// Change reacts to every rule whose field differs from its baseline.
//
// Header rules are evaluated first, then action rules, each in
// configuration order. All rules compare against the baseline as it stood
// when Change was called, so rules sharing a field do not mask each other.
// A failing rule never stops the others and no panic escapes.
func (d *Dispatcher) Change(ctx context.Context, documentID string, snapshot core.Metadata) (report Report) {
	report.DocumentID = documentID
	if snapshot == nil {
		return report
	}

	unlock := d.locks.Lock(documentID)
	defer unlock()
	defer d.recoverInto(ctx, &report)

	d.stats.changes.Add(1)

	rules, err := d.rules.Rules(ctx)
	if err != nil {
		d.failDispatch(ctx, &report, fmt.Errorf("loading rules: %w", err))
		return report
	}

	prior := d.capture(documentID, rules, snapshot)
	for _, rule := range rules.All() {
		d.evaluate(ctx, documentID, rule, snapshot, prior, &report)
	}
	return report
}

// observed is a baseline lookup result.
type observed struct {
	value any
	ok    bool
}

// capture reads the baseline of every field a matching rule watches.
func (d *Dispatcher) capture(documentID string, rules core.RuleSet, snapshot core.Metadata) map[string]observed {
	prior := make(map[string]observed)
	for _, rule := range rules.All() {
		base := rule.Base()
		if !base.Matches(snapshot) {
			continue
		}
		if _, done := prior[base.Field]; done {
			continue
		}
		v, ok := d.cache.Get(documentID, base.Field)
		prior[base.Field] = observed{value: v, ok: ok}
	}
	return prior
}

func (d *Dispatcher) evaluate(ctx context.Context, documentID string, rule core.Rule, snapshot core.Metadata, prior map[string]observed, report *Report) {
	base := rule.Base()
	if !base.Matches(snapshot) {
		return
	}

	current := snapshot[base.Field]
	prev := prior[base.Field]
	if prev.ok && core.Equal(prev.value, current) {
		return
	}

	o := d.react(ctx, documentID, rule, prev, current)
	o.Rule = rule
	o.Previous = prev.value
	o.Current = current

	d.cache.Set(documentID, base.Field, current)
	report.add(o)
	d.record(ctx, documentID, o)
}

// react performs the side effect of a single rule, converting a panic into
// a failed outcome.
func (d *Dispatcher) react(ctx context.Context, documentID string, rule core.Rule, prev observed, current any) (o Outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			o = Outcome{Kind: OutcomeFailed, Err: d.panicError(ctx, recovered)}
		}
	}()

	switch r := rule.(type) {
	case core.HeaderRule:
		return d.rewriteHeader(ctx, documentID, r, current)
	case core.ActionRule:
		return d.invokeAction(ctx, documentID, r, prev, current)
	default:
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("unsupported rule type %T", rule)}
	}
}

func (d *Dispatcher) rewriteHeader(ctx context.Context, documentID string, rule core.HeaderRule, value any) Outcome {
	content, err := d.content.ReadContent(ctx, documentID)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("reading %s: %w", documentID, err)}
	}

	updated, found := header.Rewrite(content, rule.Header, value)
	if !found {
		return Outcome{Kind: OutcomeHeaderMissing}
	}
	if updated == content {
		return Outcome{Kind: OutcomeUnchanged}
	}

	reason := fmt.Sprintf("set %q to %s", rule.Header, core.FormatValue(value))
	wctx := context.WithValue(ctx, core.ChangeReasonKey, reason)
	if err := d.content.WriteContent(wctx, documentID, updated); err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("writing %s: %w", documentID, err)}
	}
	return Outcome{Kind: OutcomeRewritten}
}

func (d *Dispatcher) invokeAction(ctx context.Context, documentID string, rule core.ActionRule, prev observed, current any) Outcome {
	if !prev.ok {
		return Outcome{Kind: OutcomeSuppressed}
	}

	err := d.actions.Invoke(ctx, rule.Action, core.Trigger{
		DocumentID: documentID,
		Field:      rule.Field,
		Previous:   prev.value,
		Current:    current,
	})
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("action %s: %w", rule.Action, err)}
	}
	return Outcome{Kind: OutcomeInvoked}
}

// record updates counters, logs the outcome and raises a notice when the
// user should know about it.
func (d *Dispatcher) record(ctx context.Context, documentID string, o Outcome) {
	field := o.Rule.Base().Field

	switch o.Kind {
	case OutcomeRewritten:
		d.stats.rewrites.Add(1)
		d.logger.Info("header rewritten", "document", documentID, "field", field, "value", o.Current)
	case OutcomeUnchanged:
		d.logger.Debug("header already current", "document", documentID, "field", field)
	case OutcomeHeaderMissing:
		rule := o.Rule.(core.HeaderRule)
		d.logger.Debug("header not found", "document", documentID, "header", rule.Header)
		d.notifier.Notify(ctx, core.Notice{
			Level:      core.NoticeWarn,
			DocumentID: documentID,
			Message:    fmt.Sprintf("header %q not found", rule.Header),
		})
	case OutcomeInvoked:
		d.stats.invocations.Add(1)
		d.logger.Info("action invoked", "document", documentID, "field", field, "action", o.Rule.(core.ActionRule).Action)
	case OutcomeSuppressed:
		d.stats.suppressed.Add(1)
		d.logger.Debug("first observation, action suppressed", "document", documentID, "field", field)
	case OutcomeFailed:
		d.stats.failures.Add(1)
		d.logger.Error("rule reaction failed", "document", documentID, "field", field, "kind", o.Rule.Kind(), "error", o.Err)
		d.notifier.Notify(ctx, core.Notice{
			Level:      core.NoticeError,
			DocumentID: documentID,
			Message:    fmt.Sprintf("%s rule on %q failed", o.Rule.Kind(), field),
			Err:        o.Err,
		})
	}
}

func (d *Dispatcher) failDispatch(ctx context.Context, report *Report, err error) {
	d.stats.failures.Add(1)
	report.Failures = append(report.Failures, err)
	d.logger.Error("dispatch failed", "document", report.DocumentID, "error", err)
	d.notifier.Notify(ctx, core.Notice{
		Level:      core.NoticeError,
		DocumentID: report.DocumentID,
		Message:    "could not evaluate watch rules",
		Err:        err,
	})
}

func (d *Dispatcher) recoverInto(ctx context.Context, report *Report) {
	if recovered := recover(); recovered != nil {
		d.failDispatch(ctx, report, d.panicError(ctx, recovered))
	}
}

// panicError converts a recovered value into an error, logging the stack
// only when debug logging is enabled.
func (d *Dispatcher) panicError(ctx context.Context, recovered any) error {
	err := fmt.Errorf("dispatch panic: %v", recovered)
	if d.logger.Enabled(ctx, slog.LevelDebug) {
		d.logger.Debug("dispatch panic", "error", err, "stack", string(debug.Stack()))
	}
	return err
}
