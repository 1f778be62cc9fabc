package events

import (
	"fmt"

	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
)

// Payload is the type-specific portion of a domain event. Each event kind is a
// distinct variant with an explicit schema; the generic field-map encoding of
// earlier revisions survives only on the wire as JSON.
type Payload interface {
	EventType() enums.EventType
	Validate() error
}

// ItemCreated carries the full initial attribute set of a new item.
type ItemCreated struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURLs   []string         `json:"image_urls"`
	LocationLat float64          `json:"location_lat"`
	LocationLon float64          `json:"location_lon"`
	OwnerID     string           `json:"owner_id"`
	Status      enums.ItemStatus `json:"status"`
}

// EventType implements Payload.
func (ItemCreated) EventType() enums.EventType {
	return enums.EventTypeItemCreated
}

// Validate implements Payload.
func (p ItemCreated) Validate() error {
	if p.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if p.OwnerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !p.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", p.Status))
	}
	if p.LocationLat < -90 || p.LocationLat > 90 {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude out of range")
	}
	if p.LocationLon < -180 || p.LocationLon > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "longitude out of range")
	}
	return nil
}

// ItemUpdated records a partial attribute change along with the values the
// fields held immediately before the change, for the audit trail.
type ItemUpdated struct {
	Changes        map[string]any `json:"changes"`
	PreviousValues map[string]any `json:"previous_values"`
}

// EventType implements Payload.
func (ItemUpdated) EventType() enums.EventType {
	return enums.EventTypeItemUpdated
}

// Validate implements Payload.
func (p ItemUpdated) Validate() error {
	if len(p.Changes) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one change is required")
	}
	if raw, ok := p.Changes["status"]; ok {
		status, isString := raw.(string)
		if !isString {
			return pkgerrors.New(pkgerrors.CodeValidation, "status change must be a string")
		}
		if _, err := enums.ParseItemStatus(status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status change")
		}
	}
	return nil
}

// ItemStatusChanged records a lifecycle transition.
type ItemStatusChanged struct {
	OldStatus enums.ItemStatus `json:"old_status"`
	NewStatus enums.ItemStatus `json:"new_status"`
	Reason    string           `json:"reason,omitempty"`
}

// EventType implements Payload.
func (ItemStatusChanged) EventType() enums.EventType {
	return enums.EventTypeItemStatusChanged
}

// Validate implements Payload.
func (p ItemStatusChanged) Validate() error {
	if !p.OldStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid old status %q", p.OldStatus))
	}
	if !p.NewStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid new status %q", p.NewStatus))
	}
	return nil
}

// ItemDeleted soft-deletes an item. The projection transitions the row to the
// archived status; nothing is ever physically removed.
type ItemDeleted struct {
	Reason string `json:"reason,omitempty"`
}

// EventType implements Payload.
func (ItemDeleted) EventType() enums.EventType {
	return enums.EventTypeItemDeleted
}

// Validate implements Payload.
func (ItemDeleted) Validate() error {
	return nil
}
