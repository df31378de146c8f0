// Package lifecycle exposes notely change events as a lifecycle.Source.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notely/pkg/core"
)

type noteSource struct {
	events <-chan core.Event
	out    chan lifecycle.Event
	kinds  map[core.EntityKind]bool
	owner  int64
}

// SourceOption narrows the events a source emits.
type SourceOption func(*noteSource)

// WithKinds keeps only events about the given entity kinds.
func WithKinds(kinds ...core.EntityKind) SourceOption {
	return func(s *noteSource) {
		s.kinds = make(map[core.EntityKind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
}

// WithOwner keeps only events about records owned by ownerID.
func WithOwner(ownerID int64) SourceOption {
	return func(s *noteSource) { s.owner = ownerID }
}

// NewSource creates a lifecycle.Source that emits the given core events.
func NewSource(events <-chan core.Event, opts ...SourceOption) lifecycle.Source {
	s := &noteSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *noteSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *noteSource) accepts(e core.Event) bool {
	if s.kinds != nil && !s.kinds[e.Kind] {
		return false
	}
	return s.owner == 0 || e.OwnerID == s.owner
}

func (s *noteSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if !s.accepts(e) {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
