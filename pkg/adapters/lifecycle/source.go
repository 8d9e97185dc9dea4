// Package lifecycle bridges vault watch events to github.com/aretw0/lifecycle.
package lifecycle

import (
	"context"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/fieldwatch/pkg/core"
)

type eventSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
	once   sync.Once
}

// NewSource creates a lifecycle.Source relaying watch events.
// The output channel closes when the input closes or the context ends.
func NewSource(events <-chan core.Event) lifecycle.Source {
	return &eventSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *eventSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start launches the relay. Calling it more than once has no effect.
func (s *eventSource) Start(ctx context.Context) error {
	s.once.Do(func() {
		lifecycle.Go(ctx, s.relay)
	})
	return nil
}

func (s *eventSource) relay(ctx context.Context) error {
	defer close(s.out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-s.events:
			if !ok {
				return nil
			}
			// core.Event satisfies lifecycle.Event through String.
			select {
			case s.out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
