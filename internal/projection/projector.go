package projection

import (
	"fmt"

	"github.com/swapcircle/catalog-backend/internal/events"
	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
)

// Apply folds one event into the read-model row. It is a pure function: the
// same (prior row, event) pair always yields the same result, whether invoked
// incrementally after an append or replayed across the full history for a
// rebuild. Any divergence between those two modes is a correctness bug.
//
// The prior row is nil only before the first event; the returned row is a new
// value, never a mutation of prev.
func Apply(prev *models.Item, event *events.Event) (*models.Item, error) {
	if event == nil || event.Payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event payload is required")
	}

	switch payload := event.Payload.(type) {
	case events.ItemCreated:
		if prev != nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("item %s already projected", event.AggregateID))
		}
		return &models.Item{
			ID:          event.AggregateID,
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			ImageURLs:   append([]string(nil), payload.ImageURLs...),
			LocationLat: payload.LocationLat,
			LocationLon: payload.LocationLon,
			OwnerID:     payload.OwnerID,
			Status:      payload.Status,
			CreatedAt:   event.Timestamp,
			UpdatedAt:   event.Timestamp,
		}, nil

	case events.ItemUpdated:
		if prev == nil {
			return nil, missingRowError(event)
		}
		next := *prev
		next.ImageURLs = append([]string(nil), prev.ImageURLs...)
		for field, value := range payload.Changes {
			setItemField(&next, field, value)
		}
		next.UpdatedAt = event.Timestamp
		return &next, nil

	case events.ItemStatusChanged:
		if prev == nil {
			return nil, missingRowError(event)
		}
		next := *prev
		next.Status = payload.NewStatus
		next.UpdatedAt = event.Timestamp
		return &next, nil

	case events.ItemDeleted:
		if prev == nil {
			return nil, missingRowError(event)
		}
		// Soft delete: the row survives so history stays queryable.
		next := *prev
		next.Status = enums.ItemStatusArchived
		next.UpdatedAt = event.Timestamp
		return &next, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unhandled event type %q", event.Type()))
	}
}

// Fold replays an ordered event sequence from an absent row. It is the rebuild
// path; incremental application of the same sequence must produce an identical
// row.
func Fold(history []events.Event) (*models.Item, error) {
	var row *models.Item
	for i := range history {
		next, err := Apply(row, &history[i])
		if err != nil {
			return nil, err
		}
		row = next
	}
	return row, nil
}

func missingRowError(event *events.Event) error {
	return pkgerrors.New(pkgerrors.CodeNotFound,
		fmt.Sprintf("no read-model row for item %s at version %d", event.AggregateID, event.AggregateVersion))
}
