package fs

import (
	"sync"
	"time"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// debouncer coalesces bursts of events per document ID and emits the
// merged event once the ID has been quiet for delay.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]core.Event
	timers  map[string]*time.Timer
	seq     map[string]uint64
	next    uint64
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]core.Event),
		timers:  make(map[string]*time.Timer),
		seq:     make(map[string]uint64),
	}
}

// add schedules e, replacing any pending event for the same ID. A pending
// CREATE absorbs later MODIFY events.
func (d *debouncer) add(e core.Event, emit func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[e.ID]; ok && prev.Type == core.EventCreate && e.Type == core.EventModify {
		e.Type = core.EventCreate
	}
	d.pending[e.ID] = e

	if t, ok := d.timers[e.ID]; ok && t.Stop() {
		d.wg.Done()
	}

	d.next++
	seq := d.next
	d.seq[e.ID] = seq

	id := e.ID
	d.wg.Add(1)
	d.timers[id] = time.AfterFunc(d.delay, func() {
		d.fire(id, seq, emit)
	})
}

func (d *debouncer) fire(id string, seq uint64, emit func(core.Event)) {
	defer d.wg.Done()

	d.mu.Lock()
	if d.stopped || d.seq[id] != seq {
		d.mu.Unlock()
		return
	}
	e, ok := d.pending[id]
	delete(d.pending, id)
	delete(d.timers, id)
	delete(d.seq, id)
	d.mu.Unlock()

	if ok {
		emit(e)
	}
}

// stopAndWait drops pending events and waits for in-flight emits to return.
func (d *debouncer) stopAndWait(timeout time.Duration) bool {
	d.mu.Lock()
	d.stopped = true
	for id, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, id)
	}
	d.pending = make(map[string]core.Event)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
