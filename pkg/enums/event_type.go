package enums

import "fmt"

// EventType identifies the closed set of domain events the catalog records.
type EventType string

const (
	EventTypeItemCreated       EventType = "item_created"
	EventTypeItemUpdated       EventType = "item_updated"
	EventTypeItemStatusChanged EventType = "item_status_changed"
	EventTypeItemDeleted       EventType = "item_deleted"
)

var validEventTypes = []EventType{
	EventTypeItemCreated,
	EventTypeItemUpdated,
	EventTypeItemStatusChanged,
	EventTypeItemDeleted,
}

// String implements fmt.Stringer.
func (t EventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known EventType.
func (t EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseEventType converts raw input into an EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
