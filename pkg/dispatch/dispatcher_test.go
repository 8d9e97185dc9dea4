package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldwatch/pkg/baseline"
	"github.com/aretw0/fieldwatch/pkg/core"
	"github.com/aretw0/fieldwatch/pkg/dispatch"
)

// MockContent implements core.ContentStore in memory.
type MockContent struct {
	mu       sync.Mutex
	docs     map[string]string
	writes   int
	readErr  error
	writeErr error
}

func NewMockContent() *MockContent {
	return &MockContent{docs: make(map[string]string)}
}

func (m *MockContent) ReadContent(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", m.readErr
	}
	c, ok := m.docs[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return c, nil
}

func (m *MockContent) WriteContent(ctx context.Context, id string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.docs[id] = content
	m.writes++
	return nil
}

func (m *MockContent) content(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

// MockRules implements core.RuleSource.
type MockRules struct {
	set core.RuleSet
	err error
}

func (m *MockRules) Rules(ctx context.Context) (core.RuleSet, error) {
	return m.set, m.err
}

type invocation struct {
	id      string
	trigger core.Trigger
}

// MockActions implements core.ActionRegistry and records invocations.
type MockActions struct {
	mu     sync.Mutex
	calls  []invocation
	errs   map[string]error
	panics map[string]bool
}

func (m *MockActions) Actions(ctx context.Context) []core.ActionInfo { return nil }

func (m *MockActions) Invoke(ctx context.Context, id string, trigger core.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics[id] {
		panic("boom")
	}
	m.calls = append(m.calls, invocation{id: id, trigger: trigger})
	return m.errs[id]
}

func (m *MockActions) count(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.id == id {
			n++
		}
	}
	return n
}

type fixture struct {
	cache   *baseline.Cache
	content *MockContent
	rules   *MockRules
	actions *MockActions
	notices []core.Notice
	d       *dispatch.Dispatcher
}

func newFixture(t *testing.T, set core.RuleSet, mode dispatch.SeedMode) *fixture {
	t.Helper()

	f := &fixture{
		cache:   baseline.New(),
		content: NewMockContent(),
		rules:   &MockRules{set: set},
		actions: &MockActions{errs: map[string]error{}, panics: map[string]bool{}},
	}

	d, err := dispatch.New(dispatch.Config{
		Cache:   f.cache,
		Rules:   f.rules,
		Content: f.content,
		Actions: f.actions,
		Notifier: core.NotifierFunc(func(ctx context.Context, n core.Notice) {
			f.notices = append(f.notices, n)
		}),
		SeedMode: mode,
	})
	require.NoError(t, err)
	f.d = d
	return f
}

func headerRule(field, header string) core.HeaderRule {
	return core.HeaderRule{RuleBase: core.RuleBase{Field: field, Active: true}, Header: header}
}

func actionRule(field, action string) core.ActionRule {
	return core.ActionRule{RuleBase: core.RuleBase{Field: field, Active: true}, Action: action}
}

func TestChange_FirstObservationSuppressesAction(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("status", "notify")}}, "")
	ctx := context.Background()

	report := f.d.Change(ctx, "doc", core.Metadata{"status": "open"})

	assert.Equal(t, 0, f.actions.count("notify"))
	assert.Equal(t, 1, report.Count(dispatch.OutcomeSuppressed))
	v, ok := f.cache.Get("doc", "status")
	require.True(t, ok, "baseline must be seeded on first observation")
	assert.Equal(t, "open", v)
}

func TestChange_SubsequentChangeFiresOnce(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("status", "notify")}}, "")
	ctx := context.Background()
	f.cache.Set("doc", "status", "A")

	report := f.d.Change(ctx, "doc", core.Metadata{"status": "B"})
	require.NoError(t, report.Err())

	assert.Equal(t, 1, f.actions.count("notify"))
	assert.Equal(t, core.Trigger{DocumentID: "doc", Field: "status", Previous: "A", Current: "B"}, f.actions.calls[0].trigger)
	v, _ := f.cache.Get("doc", "status")
	assert.Equal(t, "B", v)

	// Duplicate notification for the same edit.
	f.d.Change(ctx, "doc", core.Metadata{"status": "B"})
	assert.Equal(t, 1, f.actions.count("notify"))
}

func TestChange_UnchangedValueIsNoop(t *testing.T) {
	set := core.RuleSet{
		Headers: []core.HeaderRule{headerRule("status", "## Status")},
		Actions: []core.ActionRule{actionRule("status", "notify")},
	}
	f := newFixture(t, set, "")
	ctx := context.Background()
	f.content.docs["doc"] = "## Status A\n"
	f.cache.Set("doc", "status", "A")

	report := f.d.Change(ctx, "doc", core.Metadata{"status": "A"})

	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, f.actions.count("notify"))
	assert.Equal(t, 0, f.content.writes)
	v, _ := f.cache.Get("doc", "status")
	assert.Equal(t, "A", v)
}

func TestChange_NumericRetypeIsNoop(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("count", "notify")}}, "")
	ctx := context.Background()
	f.cache.Set("doc", "count", 1)

	report := f.d.Change(ctx, "doc", core.Metadata{"count": 1.0})

	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, f.actions.count("notify"))
}

func TestChange_HeaderUpdatesOnFirstObservation(t *testing.T) {
	f := newFixture(t, core.RuleSet{Headers: []core.HeaderRule{headerRule("due", "## Due")}}, "")
	ctx := context.Background()
	f.content.docs["doc"] = "# Task\n## Due\nbody\n"

	report := f.d.Change(ctx, "doc", core.Metadata{"due": "2024-01-01"})
	require.NoError(t, report.Err())

	assert.Equal(t, 1, report.Count(dispatch.OutcomeRewritten))
	assert.Equal(t, "# Task\n## Due 2024-01-01\nbody\n", f.content.content("doc"))
	assert.Equal(t, 1, f.content.writes)
	v, _ := f.cache.Get("doc", "due")
	assert.Equal(t, "2024-01-01", v)
}

func TestChange_InactiveRuleIsInert(t *testing.T) {
	inactive := actionRule("status", "notify")
	inactive.Active = false
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{inactive}}, "")
	ctx := context.Background()

	f.d.Open(ctx, "doc", core.Metadata{"status": "A"})
	f.d.Change(ctx, "doc", core.Metadata{"status": "B"})
	f.d.Change(ctx, "doc", core.Metadata{"status": "C"})

	assert.Equal(t, 0, f.actions.count("notify"))
	_, ok := f.cache.Get("doc", "status")
	assert.False(t, ok, "no active rule watches the field, so no baseline")
}

func TestChange_InactiveRuleFieldSeededByOtherActiveRule(t *testing.T) {
	inactive := actionRule("status", "never")
	inactive.Active = false
	set := core.RuleSet{Actions: []core.ActionRule{inactive, actionRule("status", "notify")}}
	f := newFixture(t, set, "")
	ctx := context.Background()

	f.d.Open(ctx, "doc", core.Metadata{"status": "A"})
	f.d.Change(ctx, "doc", core.Metadata{"status": "B"})

	assert.Equal(t, 0, f.actions.count("never"))
	assert.Equal(t, 1, f.actions.count("notify"))
	v, _ := f.cache.Get("doc", "status")
	assert.Equal(t, "B", v)
}

func TestChange_HeaderNotFoundIsNoop(t *testing.T) {
	f := newFixture(t, core.RuleSet{Headers: []core.HeaderRule{headerRule("due", "## Due")}}, "")
	ctx := context.Background()
	f.content.docs["doc"] = "# Task\nno header here\n"

	report := f.d.Change(ctx, "doc", core.Metadata{"due": "2024-01-01"})

	assert.NoError(t, report.Err())
	assert.Equal(t, 1, report.Count(dispatch.OutcomeHeaderMissing))
	assert.Equal(t, "# Task\nno header here\n", f.content.content("doc"))
	assert.Equal(t, 0, f.content.writes)
	require.Len(t, f.notices, 1)
	assert.Equal(t, core.NoticeWarn, f.notices[0].Level)
}

func TestChange_HeaderAlreadyCurrentSkipsWrite(t *testing.T) {
	f := newFixture(t, core.RuleSet{Headers: []core.HeaderRule{headerRule("due", "## Due")}}, "")
	ctx := context.Background()
	f.content.docs["doc"] = "## Due 2024-01-01\n"

	report := f.d.Change(ctx, "doc", core.Metadata{"due": "2024-01-01"})

	assert.Equal(t, 1, report.Count(dispatch.OutcomeUnchanged))
	assert.Equal(t, 0, f.content.writes)
}

func TestOpen_ReseedsSilently(t *testing.T) {
	set := core.RuleSet{
		Headers: []core.HeaderRule{headerRule("due", "## Due")},
		Actions: []core.ActionRule{actionRule("status", "notify")},
	}
	f := newFixture(t, set, dispatch.SeedOverwrite)
	ctx := context.Background()
	f.content.docs["doc"] = "## Due\n"
	f.cache.Set("doc", "status", "A")

	report := f.d.Open(ctx, "doc", core.Metadata{"status": "B", "due": "2024-02-02"})

	assert.Equal(t, 2, report.Seeded)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, f.actions.count("notify"))
	assert.Equal(t, 0, f.content.writes)
	v, _ := f.cache.Get("doc", "status")
	assert.Equal(t, "B", v)

	// The external change was adopted as baseline: no reaction for it later.
	f.d.Change(ctx, "doc", core.Metadata{"status": "B", "due": "2024-02-02"})
	assert.Equal(t, 0, f.actions.count("notify"))
	assert.Equal(t, 0, f.content.writes)
}

func TestOpen_FillModeKeepsExistingBaseline(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("status", "notify")}}, dispatch.SeedFill)
	ctx := context.Background()
	f.cache.Set("doc", "status", "A")

	report := f.d.Open(ctx, "doc", core.Metadata{"status": "B"})
	assert.Equal(t, 0, report.Seeded)

	v, _ := f.cache.Get("doc", "status")
	assert.Equal(t, "A", v)

	// The change made while closed is now reacted to.
	f.d.Change(ctx, "doc", core.Metadata{"status": "B"})
	assert.Equal(t, 1, f.actions.count("notify"))

	// Absent entries are still filled.
	report = f.d.Open(ctx, "other", core.Metadata{"status": "X"})
	assert.Equal(t, 1, report.Seeded)
}

func TestOpen_SeedThenChangeFiresAction(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("status", "notify")}}, "")
	ctx := context.Background()

	f.d.Open(ctx, "doc", core.Metadata{"status": "A"})
	f.d.Change(ctx, "doc", core.Metadata{"status": "B"})

	assert.Equal(t, 1, f.actions.count("notify"))
}

func TestChange_EmptyFieldNeverMatches(t *testing.T) {
	for _, active := range []bool{true, false} {
		t.Run(fmt.Sprintf("active=%v", active), func(t *testing.T) {
			h := headerRule("", "## Due")
			h.Active = active
			a := actionRule("", "notify")
			a.Active = active
			f := newFixture(t, core.RuleSet{Headers: []core.HeaderRule{h}, Actions: []core.ActionRule{a}}, "")
			ctx := context.Background()
			f.content.docs["doc"] = "## Due\n"

			for _, snap := range []core.Metadata{{"": "x"}, {"due": "y"}, {"": "z"}} {
				f.d.Open(ctx, "doc", snap)
				report := f.d.Change(ctx, "doc", snap)
				assert.Empty(t, report.Outcomes)
			}
			assert.Equal(t, 0, f.content.writes)
			assert.Equal(t, 0, f.actions.count("notify"))
			assert.Equal(t, 0, f.cache.Len())
		})
	}
}

func TestChange_NilSnapshotIsNoop(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("status", "notify")}}, "")
	ctx := context.Background()

	report := f.d.Change(ctx, "doc", nil)
	assert.Empty(t, report.Outcomes)
	assert.NoError(t, report.Err())

	report = f.d.Open(ctx, "doc", nil)
	assert.Equal(t, 0, report.Seeded)
	assert.Equal(t, 0, f.cache.Len())
}

func TestChange_FalsyValuesSkipped(t *testing.T) {
	f := newFixture(t, core.RuleSet{Actions: []core.ActionRule{actionRule("count", "notify")}}, "")
	ctx := context.Background()
	f.cache.Set("doc", "count", 3)

	for _, v := range []any{0, "", false, nil} {
		report := f.d.Change(ctx, "doc", core.Metadata{"count": v})
		assert.Empty(t, report.Outcomes)
	}
	cached, _ := f.cache.Get("doc", "count")
	assert.Equal(t, 3, cached, "falsy values never replace the baseline")
}

func TestChange_ActionFailureDoesNotStopOtherRules(t *testing.T) {
	set := core.RuleSet{
		Headers: []core.HeaderRule{headerRule("status", "## Status")},
		Actions: []core.ActionRule{
			actionRule("status", "broken"),
			actionRule("status", "panics"),
			actionRule("status", "notify"),
		},
	}
	f := newFixture(t, set, "")
	ctx := context.Background()
	f.content.docs["doc"] = "## Status\n"
	f.cache.Set("doc", "status", "A")
	f.actions.errs["broken"] = fmt.Errorf("%w: broken", core.ErrUnknownAction)
	f.actions.panics["panics"] = true

	report := f.d.Change(ctx, "doc", core.Metadata{"status": "B"})

	assert.Equal(t, 1, report.Count(dispatch.OutcomeRewritten))
	assert.Equal(t, 2, report.Count(dispatch.OutcomeFailed))
	assert.Equal(t, 1, report.Count(dispatch.OutcomeInvoked))
	assert.Equal(t, 1, f.actions.count("notify"))
	assert.ErrorIs(t, report.Err(), core.ErrUnknownAction)
	assert.Equal(t, "## Status B\n", f.content.content("doc"))

	errorNotices := 0
	for _, n := range f.notices {
		if n.Level == core.NoticeError {
			errorNotices++
		}
	}
	assert.Equal(t, 2, errorNotices)

	state := f.d.State().(dispatch.DispatcherState)
	assert.Equal(t, int64(2), state.Failures)
	assert.Equal(t, int64(1), state.Invocations)
	assert.Equal(t, int64(1), state.Rewrites)
}

func TestChange_RulesOnSameFieldAreIndependent(t *testing.T) {
	set := core.RuleSet{
		Headers: []core.HeaderRule{headerRule("status", "## A"), headerRule("status", "## B")},
		Actions: []core.ActionRule{actionRule("status", "first"), actionRule("status", "second")},
	}
	f := newFixture(t, set, "")
	ctx := context.Background()
	f.content.docs["doc"] = "## A\n## B\n"
	f.cache.Set("doc", "status", "old")

	report := f.d.Change(ctx, "doc", core.Metadata{"status": "new"})
	require.NoError(t, report.Err())

	assert.Equal(t, "## A new\n## B new\n", f.content.content("doc"))
	assert.Equal(t, 1, f.actions.count("first"))
	assert.Equal(t, 1, f.actions.count("second"))
}

func TestChange_ContentFailureReported(t *testing.T) {
	f := newFixture(t, core.RuleSet{Headers: []core.HeaderRule{headerRule("due", "## Due")}}, "")
	ctx := context.Background()
	f.content.readErr = errors.New("disk gone")

	report := f.d.Change(ctx, "doc", core.Metadata{"due": "x"})

	assert.Equal(t, 1, report.Count(dispatch.OutcomeFailed))
	assert.ErrorContains(t, report.Err(), "disk gone")
}

func TestChange_RuleSourceFailure(t *testing.T) {
	f := newFixture(t, core.RuleSet{}, "")
	f.rules.err = errors.New("settings unreadable")
	ctx := context.Background()

	report := f.d.Change(ctx, "doc", core.Metadata{"status": "x"})

	require.Len(t, report.Failures, 1)
	assert.ErrorContains(t, report.Err(), "settings unreadable")
	require.Len(t, f.notices, 1)
	assert.Equal(t, core.NoticeError, f.notices[0].Level)
}

func TestChange_RulesReadOnEveryDispatch(t *testing.T) {
	f := newFixture(t, core.RuleSet{}, "")
	ctx := context.Background()
	f.cache.Set("doc", "status", "A")

	f.d.Change(ctx, "doc", core.Metadata{"status": "B"})
	assert.Equal(t, 0, f.actions.count("notify"))

	f.rules.set = core.RuleSet{Actions: []core.ActionRule{actionRule("status", "notify")}}
	f.d.Change(ctx, "doc", core.Metadata{"status": "C"})
	assert.Equal(t, 1, f.actions.count("notify"))
}

func TestChange_ConcurrentNotificationsSerialised(t *testing.T) {
	f := newFixture(t, core.RuleSet{Headers: []core.HeaderRule{headerRule("due", "## Due")}}, "")
	ctx := context.Background()
	f.content.docs["doc"] = "## Due\n"

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.d.Change(ctx, "doc", core.Metadata{"due": "2024-01-01"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.content.writes, "only the first notification sees a difference")
	assert.Equal(t, "## Due 2024-01-01\n", f.content.content("doc"))
	assert.Equal(t, 0, f.d.State().(dispatch.DispatcherState).InFlight)
}

func TestNew_Validation(t *testing.T) {
	_, err := dispatch.New(dispatch.Config{})
	assert.Error(t, err)

	_, err = dispatch.New(dispatch.Config{
		Cache:    baseline.New(),
		Rules:    &MockRules{},
		Content:  NewMockContent(),
		Actions:  &MockActions{},
		SeedMode: "sometimes",
	})
	assert.ErrorContains(t, err, "invalid seed mode")
}

func TestParseSeedMode(t *testing.T) {
	m, err := dispatch.ParseSeedMode("")
	require.NoError(t, err)
	assert.Equal(t, dispatch.SeedOverwrite, m)

	m, err = dispatch.ParseSeedMode("fill")
	require.NoError(t, err)
	assert.Equal(t, dispatch.SeedFill, m)
}
