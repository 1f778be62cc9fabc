package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/internal/events"
	"github.com/swapcircle/catalog-backend/internal/eventstore"
	"github.com/swapcircle/catalog-backend/internal/projection"
	"github.com/swapcircle/catalog-backend/pkg/db"
	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
	"github.com/swapcircle/catalog-backend/pkg/logger"
)

// Service is the write side of the catalog: it turns intents into events,
// appends them to the log, and projects the read model inside one transaction,
// so the log never runs ahead of the view it derives.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*ItemDTO, error)
	ChangeItemStatus(ctx context.Context, input ChangeItemStatusInput) (*ItemDTO, error)
	DeleteItem(ctx context.Context, input DeleteItemInput) error
}

type service struct {
	dbClient *db.Client
	store    eventstore.Repository
	repo     *Repository
	logg     *logger.Logger
}

// NewService wires the command handler with its collaborators.
func NewService(dbClient *db.Client, store eventstore.Repository, repo *Repository, logg *logger.Logger) (Service, error) {
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
	return &service{dbClient: dbClient, store: store, repo: repo, logg: logg}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	event, err := events.New(uuid.New(), input.UserID, events.ItemCreated{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		ImageURLs:   input.ImageURLs,
		LocationLat: input.LocationLat,
		LocationLon: input.LocationLon,
		OwnerID:     input.OwnerID,
		Status:      enums.ItemStatusActive,
	})
	if err != nil {
		return nil, err
	}
	event.WithMetadata(input.Metadata)

	row, err := s.commit(ctx, nil, 0, event)
	if err != nil {
		return nil, err
	}
	return toItemDTO(row), nil
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*ItemDTO, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	current, expected, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	// Snapshot the pre-change values of exactly the changed fields so the
	// audit trail can show what each update replaced.
	previous := map[string]any{}
	for field := range input.Changes {
		if value, ok := projection.ItemFieldValue(current, field); ok {
			previous[field] = value
		}
	}

	event, err := events.New(input.ItemID, input.UserID, events.ItemUpdated{
		Changes:        input.Changes,
		PreviousValues: previous,
	})
	if err != nil {
		return nil, err
	}
	event.WithMetadata(input.Metadata)

	row, err := s.commit(ctx, current, expected, event)
	if err != nil {
		return nil, err
	}
	return toItemDTO(row), nil
}

func (s *service) ChangeItemStatus(ctx context.Context, input ChangeItemStatusInput) (*ItemDTO, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	current, expected, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	event, err := events.New(input.ItemID, input.UserID, events.ItemStatusChanged{
		OldStatus: current.Status,
		NewStatus: input.NewStatus,
		Reason:    input.Reason,
	})
	if err != nil {
		return nil, err
	}
	event.WithMetadata(input.Metadata)

	row, err := s.commit(ctx, current, expected, event)
	if err != nil {
		return nil, err
	}
	return toItemDTO(row), nil
}

func (s *service) DeleteItem(ctx context.Context, input DeleteItemInput) error {
	if err := validateInput(input); err != nil {
		return err
	}

	current, expected, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return err
	}

	event, err := events.New(input.ItemID, input.UserID, events.ItemDeleted{
		Reason: input.Reason,
	})
	if err != nil {
		return err
	}
	event.WithMetadata(input.Metadata)

	_, err = s.commit(ctx, current, expected, event)
	return err
}

// loadItem returns the item's row together with the aggregate version it was
// observed at. The version is read before the row: a writer that lands in
// between holds the version we are about to claim, so the commit fails with a
// CONFLICT instead of projecting from a row the writer already replaced.
func (s *service) loadItem(ctx context.Context, id uuid.UUID) (*models.Item, int, error) {
	version, err := s.store.CurrentVersion(ctx, id, enums.AggregateTypeItem)
	if err != nil {
		return nil, 0, err
	}

	item, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("item %s not found", id))
	}
	if err != nil {
		return nil, 0, err
	}
	return item, version, nil
}

// commit claims the version after the one the caller's state was loaded at,
// appends the event, and projects it into the read model, all in one
// transaction. The expected version is NOT re-read here: it must come from the
// same load as prev, so a writer that committed in the meantime collides with
// our claim on the unique version index and the append fails with a CONFLICT
// rather than saving a projection of a stale row.
func (s *service) commit(ctx context.Context, prev *models.Item, expected int, event *events.Event) (*models.Item, error) {
	event.AggregateVersion = expected + 1

	var projected *models.Item
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.store.WithTx(tx).Append(ctx, event); err != nil {
			return err
		}

		var err error
		projected, err = projection.Apply(prev, event)
		if err != nil {
			return err
		}
		return s.repo.WithTx(tx).Save(ctx, projected)
	})
	if err != nil {
		s.logCommitFailure(ctx, event, err)
		return nil, err
	}

	s.logEvent(ctx, event)
	return projected, nil
}

// logEvent emits the structured record of an appended event. Observability
// side effect only; nothing reads it back.
func (s *service) logEvent(ctx context.Context, event *events.Event) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":          event.EventID.String(),
		"event_type":        event.Type().String(),
		"aggregate_id":      event.AggregateID.String(),
		"aggregate_type":    event.AggregateType.String(),
		"aggregate_version": event.AggregateVersion,
		"sequence_number":   event.SequenceNumber,
		"user_id":           event.UserID,
		"payload":           event.Payload,
	})
	s.logg.Info(ctx, "domain event appended")
}

// logCommitFailure records a failed append with the driver detail attached, so
// constraint trips are diagnosable from the log alone.
func (s *service) logCommitFailure(ctx context.Context, event *events.Event, err error) {
	dump := pkgerrors.Dump(err)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_type":        event.Type().String(),
		"aggregate_id":      event.AggregateID.String(),
		"aggregate_version": event.AggregateVersion,
		"error_code":        dump.Code,
		"error_chain":       dump.Chain,
		"pg_code":           dump.PGCode,
		"pg_constraint":     dump.PGConstraint,
		"pg_detail":         dump.PGDetail,
	})
	s.logg.Error(ctx, "appending domain event failed", err)
}
