package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/internal/events"
	"github.com/swapcircle/catalog-backend/internal/eventstore"
	"github.com/swapcircle/catalog-backend/internal/items"
	"github.com/swapcircle/catalog-backend/internal/projection"
	"github.com/swapcircle/catalog-backend/pkg/db"
	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
	"github.com/swapcircle/catalog-backend/pkg/logger"
)

// EventSummary is one history entry in a replayed state.
type EventSummary struct {
	Sequence  int64           `json:"sequence"`
	Type      enums.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"user"`
	Version   int             `json:"version"`
	Payload   events.Payload  `json:"payload"`
}

// AggregateState is the full replay result: the folded current state plus the
// per-event history that produced it.
type AggregateState struct {
	Current        *models.Item   `json:"current"`
	History        []EventSummary `json:"history"`
	EventCount     int            `json:"event_count"`
	CreatedAt      time.Time      `json:"created_at"`
	LastModifiedAt time.Time      `json:"last_modified_at"`
}

// Snapshot is the partial state of an aggregate as of a point in time.
type Snapshot struct {
	State      *models.Item `json:"state"`
	AsOf       time.Time    `json:"as_of"`
	Version    int          `json:"event_version"`
	EventCount int          `json:"event_count"`
}

// AuditEntry is a structured rendering of one event: who changed what, when,
// and from which prior value.
type AuditEntry struct {
	Sequence  int64           `json:"sequence"`
	EventType enums.EventType `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"user_id"`
	Version   int             `json:"version"`

	Changes        map[string]any `json:"changes,omitempty"`
	PreviousValues map[string]any `json:"previous_values,omitempty"`

	OldStatus enums.ItemStatus `json:"old_status,omitempty"`
	NewStatus enums.ItemStatus `json:"new_status,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Replayer answers read-only questions by folding an aggregate's event
// sequence, and can re-derive a read-model row from scratch. The log is
// authoritative: Rebuild is safe to invoke at any time to reconcile drift.
type Replayer struct {
	dbClient *db.Client
	store    eventstore.Repository
	repo     *items.Repository
	logg     *logger.Logger
}

// NewReplayer wires a replayer with its collaborators.
func NewReplayer(dbClient *db.Client, store eventstore.Repository, repo *items.Repository, logg *logger.Logger) (*Replayer, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if store == nil {
		return nil, fmt.Errorf("event store repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Replayer{dbClient: dbClient, store: store, repo: repo, logg: logg}, nil
}

// CurrentState folds the aggregate's full history and returns the resulting
// state alongside every event that produced it.
func (r *Replayer) CurrentState(ctx context.Context, aggregateID uuid.UUID) (*AggregateState, error) {
	history, err := r.history(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	current, err := projection.Fold(history)
	if err != nil {
		return nil, err
	}

	summaries := make([]EventSummary, 0, len(history))
	for _, event := range history {
		summaries = append(summaries, EventSummary{
			Sequence:  event.SequenceNumber,
			Type:      event.Type(),
			Timestamp: event.Timestamp,
			UserID:    event.UserID,
			Version:   event.AggregateVersion,
			Payload:   event.Payload,
		})
	}

	return &AggregateState{
		Current:        current,
		History:        summaries,
		EventCount:     len(history),
		CreatedAt:      history[0].Timestamp,
		LastModifiedAt: history[len(history)-1].Timestamp,
	}, nil
}

// StateAt time-travels: it folds only the events that occurred at or before
// the target time. Event timestamps, not sequence numbers, are the comparison
// key. A target before the aggregate's first event yields NOT_FOUND.
func (r *Replayer) StateAt(ctx context.Context, aggregateID uuid.UUID, target time.Time) (*Snapshot, error) {
	if target.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target time is required")
	}

	history, err := r.history(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	var upTo []events.Event
	for _, event := range history {
		if !event.Timestamp.After(target) {
			upTo = append(upTo, event)
		}
	}
	if len(upTo) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("item %s did not exist at %s", aggregateID, target.Format(time.RFC3339)))
	}

	state, err := projection.Fold(upTo)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		State:      state,
		AsOf:       target,
		Version:    upTo[len(upTo)-1].AggregateVersion,
		EventCount: len(upTo),
	}, nil
}

// AuditTrail renders each event as a structured audit entry, optionally
// filtered by event type. It is a pure transformation of the history and does
// not depend on the folded state.
func (r *Replayer) AuditTrail(ctx context.Context, aggregateID uuid.UUID, typeFilter *enums.EventType) ([]AuditEntry, error) {
	history, err := r.store.ListForAggregate(ctx, aggregateID, enums.AggregateTypeItem)
	if err != nil {
		return nil, err
	}

	trail := make([]AuditEntry, 0, len(history))
	for _, event := range history {
		if typeFilter != nil && event.Type() != *typeFilter {
			continue
		}

		entry := AuditEntry{
			Sequence:  event.SequenceNumber,
			EventType: event.Type(),
			Timestamp: event.Timestamp,
			UserID:    event.UserID,
			Version:   event.AggregateVersion,
		}

		switch payload := event.Payload.(type) {
		case events.ItemUpdated:
			entry.Changes = payload.Changes
			entry.PreviousValues = payload.PreviousValues
		case events.ItemStatusChanged:
			entry.OldStatus = payload.OldStatus
			entry.NewStatus = payload.NewStatus
			entry.Reason = payload.Reason
		case events.ItemDeleted:
			entry.Reason = payload.Reason
		}

		trail = append(trail, entry)
	}
	return trail, nil
}

// Rebuild discards the aggregate's read-model row and re-derives it from the
// full event history. It is the system's self-check that the log is
// authoritative: the result must match what incremental projection produced.
func (r *Replayer) Rebuild(ctx context.Context, aggregateID uuid.UUID) (*models.Item, error) {
	history, err := r.history(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	rebuilt, err := projection.Fold(history)
	if err != nil {
		return nil, err
	}

	err = r.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		if err := repo.Delete(ctx, aggregateID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return repo.Save(ctx, rebuilt)
	})
	if err != nil {
		return nil, err
	}

	ctx = r.logg.WithFields(ctx, map[string]any{
		"aggregate_id": aggregateID.String(),
		"event_count":  len(history),
	})
	r.logg.Info(ctx, "read model rebuilt from event log")
	return rebuilt, nil
}

// RebuildAll re-derives every read-model row in the log. Failures are
// collected per aggregate so one bad history does not halt the rest; the
// returned count is the number of rows successfully rebuilt.
func (r *Replayer) RebuildAll(ctx context.Context) (int, error) {
	ids, err := r.store.ListAggregateIDs(ctx, enums.AggregateTypeItem)
	if err != nil {
		return 0, err
	}

	var errs error
	rebuilt := 0
	for _, id := range ids {
		if _, err := r.Rebuild(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rebuilding item %s: %w", id, err))
			continue
		}
		rebuilt++
	}
	return rebuilt, errs
}

func (r *Replayer) history(ctx context.Context, aggregateID uuid.UUID) ([]events.Event, error) {
	history, err := r.store.ListForAggregate(ctx, aggregateID, enums.AggregateTypeItem)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound,
			fmt.Sprintf("no events recorded for item %s", aggregateID))
	}
	return history, nil
}
