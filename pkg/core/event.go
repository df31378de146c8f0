package core

import "fmt"

// EventType represents the type of change in the store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// EntityKind names the kind of record an Event refers to.
type EntityKind string

const (
	KindNote     EntityKind = "note"
	KindCategory EntityKind = "category"
	KindUser     EntityKind = "user"
)

// Event represents a change in the store.
type Event struct {
	Type      EventType
	Kind      EntityKind
	ID        int64
	OwnerID   int64
	Timestamp int64 // Unix timestamp
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return fmt.Sprintf("%s %s %d", e.Type, e.Kind, e.ID)
}
