package projection

import (
	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// The read model defines a fixed set of updatable fields. Change maps may
// arrive either freshly built (native Go values) or rehydrated from stored
// JSON (float64 numbers, []any slices), so setters coerce both shapes.
// Unknown fields and uncoercible values are skipped, which keeps the fold
// deterministic across incremental and replayed application.

// UpdatableFields lists the change-map keys the projection applies.
var UpdatableFields = []string{
	"name",
	"description",
	"category",
	"image_urls",
	"location_lat",
	"location_lon",
	"owner_id",
	"status",
}

// ItemFieldValue returns the current value of a named read-model field, used
// to capture previous values for the audit trail.
func ItemFieldValue(item *models.Item, field string) (any, bool) {
	if item == nil {
		return nil, false
	}
	switch field {
	case "name":
		return item.Name, true
	case "description":
		return item.Description, true
	case "category":
		return item.Category, true
	case "image_urls":
		return []string(item.ImageURLs), true
	case "location_lat":
		return item.LocationLat, true
	case "location_lon":
		return item.LocationLon, true
	case "owner_id":
		return item.OwnerID, true
	case "status":
		return string(item.Status), true
	default:
		return nil, false
	}
}

func setItemField(item *models.Item, field string, value any) bool {
	switch field {
	case "name":
		return setString(&item.Name, value)
	case "description":
		return setString(&item.Description, value)
	case "category":
		return setString(&item.Category, value)
	case "owner_id":
		return setString(&item.OwnerID, value)
	case "location_lat":
		return setFloat(&item.LocationLat, value)
	case "location_lon":
		return setFloat(&item.LocationLon, value)
	case "image_urls":
		urls, ok := toStringSlice(value)
		if !ok {
			return false
		}
		item.ImageURLs = urls
		return true
	case "status":
		raw, ok := value.(string)
		if !ok {
			return false
		}
		status, err := enums.ParseItemStatus(raw)
		if err != nil {
			return false
		}
		item.Status = status
		return true
	default:
		return false
	}
}

func setString(dst *string, value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	*dst = s
	return true
}

func setFloat(dst *float64, value any) bool {
	switch v := value.(type) {
	case float64:
		*dst = v
	case float32:
		*dst = float64(v)
	case int:
		*dst = float64(v)
	case int64:
		*dst = float64(v)
	default:
		return false
	}
	return true
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
