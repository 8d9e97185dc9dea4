package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/fieldwatch/pkg/core"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	var mu sync.Mutex
	var got []core.Event
	emit := func(e core.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	}

	d.add(core.Event{Type: core.EventCreate, ID: "a"}, emit)
	d.add(core.Event{Type: core.EventModify, ID: "a"}, emit)
	d.add(core.Event{Type: core.EventModify, ID: "b"}, emit)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	byID := map[string]core.EventType{}
	for _, e := range got {
		byID[e.ID] = e.Type
	}
	mu.Unlock()

	assert.Equal(t, core.EventCreate, byID["a"], "pending create absorbs modify")
	assert.Equal(t, core.EventModify, byID["b"])
	assert.True(t, d.stopAndWait(time.Second))
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	d := newDebouncer(time.Hour)
	fired := false
	d.add(core.Event{Type: core.EventModify, ID: "a"}, func(core.Event) { fired = true })

	assert.True(t, d.stopAndWait(time.Second))
	assert.False(t, fired)

	// Adds after stop are ignored.
	d.add(core.Event{Type: core.EventModify, ID: "a"}, func(core.Event) { fired = true })
	assert.False(t, fired)
}

func TestMapEventType(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want core.EventType
	}{
		{"create", fsnotify.Create, core.EventCreate},
		{"write", fsnotify.Write, core.EventModify},
		{"create and write", fsnotify.Create | fsnotify.Write, core.EventCreate},
		{"remove", fsnotify.Remove, core.EventDelete},
		{"rename", fsnotify.Rename, core.EventDelete},
		{"chmod", fsnotify.Chmod, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mapEventType(fsnotify.Event{Name: "x.md", Op: tc.op}))
		})
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(Config{Path: dir, Debounce: 20 * time.Millisecond})
	require.NoError(t, repo.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	events, err := repo.Watch(ctx, "")
	require.NoError(t, err)
	assert.True(t, repo.State().(RepositoryState).WatcherActive)

	next := func() core.Event {
		t.Helper()
		select {
		case e := <-events:
			return e
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event")
			return core.Event{}
		}
	}

	t.Run("Emits Create for New Document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("---\nx: 1\n---\n"), 0644))
		e := next()
		assert.Equal(t, "note", e.ID)
		assert.Equal(t, core.EventCreate, e.Type)
	})

	t.Run("Emits Modify for Write", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("---\nx: 2\n---\n"), 0644))
		e := next()
		assert.Equal(t, "note", e.ID)
		assert.Equal(t, core.EventModify, e.Type)
	})

	t.Run("Watches New Subdirectories", func(t *testing.T) {
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0755))
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.md"), []byte("x"), 0644))
		e := next()
		assert.Equal(t, "sub/deep", e.ID)
	})

	t.Run("Ignores Non Documents", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "last.md"), []byte("x"), 0644))
		e := next()
		assert.Equal(t, "last", e.ID)
	})

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 3*time.Second, 10*time.Millisecond)
	assert.False(t, repo.State().(RepositoryState).WatcherActive)
}

func TestWatch_InvalidPattern(t *testing.T) {
	repo := NewRepository(Config{Path: t.TempDir()})
	_, err := repo.Watch(context.Background(), "[")
	assert.Error(t, err)
}
