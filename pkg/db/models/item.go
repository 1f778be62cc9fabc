package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// Item is the denormalized read-model row for an item aggregate. Every column
// is derived from the aggregate's event history; queries read this table and
// never the event log. Deletion is a status transition, so rows are retained
// for the lifetime of the aggregate.
type Item struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null;index"`
	Description string           `gorm:"column:description;not null"`
	Category    string           `gorm:"column:category;not null;index"`
	ImageURLs   pq.StringArray   `gorm:"column:image_urls;type:text[];not null"`
	LocationLat float64          `gorm:"column:location_lat;not null"`
	LocationLon float64          `gorm:"column:location_lon;not null"`
	OwnerID     string           `gorm:"column:owner_id;not null;index"`
	Status      enums.ItemStatus `gorm:"column:status;not null;index"`
	CreatedAt   time.Time        `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;not null"`
}

// TableName overrides GORM's default.
func (Item) TableName() string {
	return "items"
}
