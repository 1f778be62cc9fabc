package items

import (
	"time"

	"github.com/google/uuid"

	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// CreateItemInput expresses the intent to list a new item. The aggregate id is
// generated by the handler; callers never pick identities.
type CreateItemInput struct {
	UserID      string         `json:"user_id" validate:"required,max=100"`
	Name        string         `json:"name" validate:"required,max=255"`
	Description string         `json:"description" validate:"required"`
	Category    string         `json:"category" validate:"required,max=100"`
	ImageURLs   []string       `json:"image_urls" validate:"required,min=1,dive,required"`
	LocationLat float64        `json:"location_lat" validate:"gte=-90,lte=90"`
	LocationLon float64        `json:"location_lon" validate:"gte=-180,lte=180"`
	OwnerID     string         `json:"owner_id" validate:"required,max=100"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateItemInput carries a partial field map to apply to an existing item.
type UpdateItemInput struct {
	UserID   string         `json:"user_id" validate:"required,max=100"`
	ItemID   uuid.UUID      `json:"item_id" validate:"required"`
	Changes  map[string]any `json:"changes" validate:"required,min=1"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChangeItemStatusInput transitions an item between lifecycle states.
type ChangeItemStatusInput struct {
	UserID    string           `json:"user_id" validate:"required,max=100"`
	ItemID    uuid.UUID        `json:"item_id" validate:"required"`
	NewStatus enums.ItemStatus `json:"new_status" validate:"required"`
	Reason    string           `json:"reason,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// DeleteItemInput soft-deletes an item.
type DeleteItemInput struct {
	UserID   string         `json:"user_id" validate:"required,max=100"`
	ItemID   uuid.UUID      `json:"item_id" validate:"required"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ItemDTO is the read-model row shaped for callers outside the persistence
// layer.
type ItemDTO struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURLs   []string         `json:"image_urls"`
	LocationLat float64          `json:"location_lat"`
	LocationLon float64          `json:"location_lon"`
	OwnerID     string           `json:"owner_id"`
	Status      enums.ItemStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toItemDTO(item *models.Item) *ItemDTO {
	if item == nil {
		return nil
	}
	return &ItemDTO{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		ImageURLs:   append([]string(nil), item.ImageURLs...),
		LocationLat: item.LocationLat,
		LocationLon: item.LocationLon,
		OwnerID:     item.OwnerID,
		Status:      item.Status,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toItemDTOs(rows []models.Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toItemDTO(&rows[i]))
	}
	return out
}
