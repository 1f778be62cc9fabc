package events

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// Event is the envelope shared by every domain event. An event is an immutable
// record of something that happened to an aggregate; once appended it is never
// modified. SequenceNumber and AggregateVersion are zero until the store
// assigns them during append.
type Event struct {
	EventID          uuid.UUID
	AggregateID      uuid.UUID
	AggregateType    enums.AggregateType
	AggregateVersion int
	SequenceNumber   int64
	Timestamp        time.Time
	UserID           string
	Metadata         map[string]any
	PayloadVersion   int
	Payload          Payload
}

// Type returns the event type carried by the payload.
func (e *Event) Type() enums.EventType {
	if e == nil || e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

// New builds an event envelope for an item aggregate, stamping identity and
// occurrence time and validating the payload.
func New(aggregateID uuid.UUID, userID string, payload Payload) (*Event, error) {
	if aggregateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "aggregate id is required")
	}
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event payload is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return &Event{
		EventID:        uuid.New(),
		AggregateID:    aggregateID,
		AggregateType:  enums.AggregateTypeItem,
		Timestamp:      time.Now().UTC(),
		UserID:         userID,
		Metadata:       map[string]any{},
		PayloadVersion: CurrentPayloadVersion,
		Payload:        payload,
	}, nil
}

// WithMetadata attaches a free-form side channel to the envelope. The core
// stores it verbatim and never interprets it.
func (e *Event) WithMetadata(metadata map[string]any) *Event {
	if e == nil || metadata == nil {
		return e
	}
	e.Metadata = metadata
	return e
}
