package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// EventRecord is the persisted form of a domain event. The event_store table
// is append-only: rows are never updated or deleted once written.
type EventRecord struct {
	SequenceNumber   int64               `gorm:"column:sequence_number;primaryKey;autoIncrement"`
	EventID          uuid.UUID           `gorm:"column:event_id;type:uuid;not null;uniqueIndex:uidx_event_store_event_id"`
	EventType        enums.EventType     `gorm:"column:event_type;not null;index:idx_event_type_timestamp,priority:1"`
	AggregateID      uuid.UUID           `gorm:"column:aggregate_id;type:uuid;not null;index:idx_aggregate,priority:1;uniqueIndex:uidx_aggregate_version,priority:1"`
	AggregateType    enums.AggregateType `gorm:"column:aggregate_type;not null;index:idx_aggregate,priority:2;uniqueIndex:uidx_aggregate_version,priority:2"`
	AggregateVersion int                 `gorm:"column:aggregate_version;not null;uniqueIndex:uidx_aggregate_version,priority:3"`
	Timestamp        time.Time           `gorm:"column:timestamp;not null;index:idx_event_type_timestamp,priority:2"`
	UserID           string              `gorm:"column:user_id;not null"`
	Payload          json.RawMessage     `gorm:"column:payload;type:jsonb;not null"`
	PayloadVersion   int                 `gorm:"column:payload_version;not null;default:1"`
	Metadata         json.RawMessage     `gorm:"column:metadata;type:jsonb;not null;default:'{}'"`
}

// TableName overrides GORM's pluralized default.
func (EventRecord) TableName() string {
	return "event_store"
}
