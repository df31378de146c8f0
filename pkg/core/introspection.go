package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	EventBufferSize int    `json:"event_buffer_size"`
	Subscribers     int    `json:"subscribers"`
	RepositoryType  string `json:"repository_type"`
	Watchable       bool   `json:"watchable"`
	// EventsPublished counts mutations; EventsDropped counts deliveries
	// skipped because a subscriber's buffer was full.
	EventsPublished int64 `json:"events_published"`
	EventsDropped   int64 `json:"events_dropped"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repoType := "unknown"
	if s.repo != nil {
		repoType = "repository"
		if comp, ok := s.repo.(introspection.Component); ok {
			repoType = comp.ComponentType()
		}
	}
	_, watchable := s.repo.(Watchable)

	return ServiceState{
		EventBufferSize: s.eventBufferSize,
		Subscribers:     len(s.subscribers),
		RepositoryType:  repoType,
		Watchable:       watchable,
		EventsPublished: s.published.Load(),
		EventsDropped:   s.dropped.Load(),
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
