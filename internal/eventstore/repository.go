package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/internal/events"
	baserepo "github.com/swapcircle/catalog-backend/internal/repo"
	"github.com/swapcircle/catalog-backend/pkg/db"
	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
)

// DefaultFeedLimit caps feed queries when the caller does not supply a limit.
const DefaultFeedLimit = 1000

// UniqueAggregateVersionConstraint names the index that makes concurrent
// appends against the same aggregate version fail instead of corrupting the
// per-aggregate version sequence.
const UniqueAggregateVersionConstraint = "uidx_aggregate_version"

// UniqueEventIDConstraint names the index keeping event ids unique across the
// whole log, so a retried command cannot record the same event twice.
const UniqueEventIDConstraint = "uidx_event_store_event_id"

// Postgres reports the violated constraint by name, SQLite by column.
var (
	aggregateVersionViolation = []string{UniqueAggregateVersionConstraint, "event_store.aggregate_version"}
	eventIDViolation          = []string{UniqueEventIDConstraint, "event_store.event_id"}
)

// Repository persists and retrieves domain events. The backing table is
// append-only: the repository exposes no update or delete surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *events.Event) (int64, error)
	ListForAggregate(ctx context.Context, aggregateID uuid.UUID, aggregateType enums.AggregateType) ([]events.Event, error)
	ListByType(ctx context.Context, eventType enums.EventType, since *time.Time, limit int) ([]events.Event, error)
	ListAll(ctx context.Context, sinceSequence int64, limit int) ([]events.Event, error)
	ListAggregateIDs(ctx context.Context, aggregateType enums.AggregateType) ([]uuid.UUID, error)
	CurrentVersion(ctx context.Context, aggregateID uuid.UUID, aggregateType enums.AggregateType) (int, error)
}

type repository struct {
	base baserepo.Base
}

// NewRepository returns an event store repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: baserepo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: baserepo.NewBase(tx)}
}

// Append persists the event and returns its store-assigned global sequence
// number. The caller stamps AggregateVersion with the version it expects to
// claim; the unique index turns a lost race into a CONFLICT error rather than
// a duplicated version.
func (r *repository) Append(ctx context.Context, event *events.Event) (int64, error) {
	if event == nil || event.Payload == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "event payload is required")
	}
	if event.AggregateVersion < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "aggregate version must be assigned before append")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "encoding event payload")
	}
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	rawMetadata, err := json.Marshal(metadata)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "encoding event metadata")
	}

	record := models.EventRecord{
		EventID:          event.EventID,
		EventType:        event.Type(),
		AggregateID:      event.AggregateID,
		AggregateType:    event.AggregateType,
		AggregateVersion: event.AggregateVersion,
		Timestamp:        event.Timestamp.UTC(),
		UserID:           event.UserID,
		Payload:          payload,
		PayloadVersion:   event.PayloadVersion,
		Metadata:         rawMetadata,
	}

	if err := r.base.DB(ctx).Create(&record).Error; err != nil {
		if db.IsUniqueViolation(err, eventIDViolation...) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "event id already recorded").
				WithDetails(map[string]any{"event_id": event.EventID})
		}
		if db.IsUniqueViolation(err, aggregateVersionViolation...) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "aggregate version already claimed").
				WithDetails(map[string]any{
					"aggregate_id":      event.AggregateID,
					"aggregate_version": event.AggregateVersion,
				})
		}
		return 0, err
	}

	event.SequenceNumber = record.SequenceNumber
	return record.SequenceNumber, nil
}

// ListForAggregate returns every event for one aggregate, ascending by
// sequence number (equivalently, ascending version).
func (r *repository) ListForAggregate(ctx context.Context, aggregateID uuid.UUID, aggregateType enums.AggregateType) ([]events.Event, error) {
	var records []models.EventRecord
	if err := r.base.DB(ctx).
		Where("aggregate_id = ? AND aggregate_type = ?", aggregateID, aggregateType).
		Order("sequence_number ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return decodeRecords(records)
}

// ListByType returns a cross-aggregate feed of one event kind, for derived
// views catching up since a point in time.
func (r *repository) ListByType(ctx context.Context, eventType enums.EventType, since *time.Time, limit int) ([]events.Event, error) {
	query := r.base.DB(ctx).Where("event_type = ?", eventType)
	if since != nil {
		query = query.Where("timestamp > ?", since.UTC())
	}

	var records []models.EventRecord
	if err := query.
		Order("sequence_number ASC").
		Limit(normalizeLimit(limit)).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return decodeRecords(records)
}

// ListAll returns the global feed, optionally after a sequence number. Used to
// rebuild every read-model row from an empty store.
func (r *repository) ListAll(ctx context.Context, sinceSequence int64, limit int) ([]events.Event, error) {
	query := r.base.DB(ctx)
	if sinceSequence > 0 {
		query = query.Where("sequence_number > ?", sinceSequence)
	}

	var records []models.EventRecord
	if err := query.
		Order("sequence_number ASC").
		Limit(normalizeLimit(limit)).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return decodeRecords(records)
}

// ListAggregateIDs returns the distinct aggregate ids present in the log.
func (r *repository) ListAggregateIDs(ctx context.Context, aggregateType enums.AggregateType) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.base.DB(ctx).
		Model(&models.EventRecord{}).
		Where("aggregate_type = ?", aggregateType).
		Distinct("aggregate_id").
		Order("aggregate_id ASC").
		Pluck("aggregate_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CurrentVersion returns the highest version recorded for the aggregate, or 0
// when the aggregate has no events yet.
func (r *repository) CurrentVersion(ctx context.Context, aggregateID uuid.UUID, aggregateType enums.AggregateType) (int, error) {
	var version *int
	if err := r.base.DB(ctx).
		Model(&models.EventRecord{}).
		Where("aggregate_id = ? AND aggregate_type = ?", aggregateID, aggregateType).
		Select("MAX(aggregate_version)").
		Scan(&version).Error; err != nil {
		return 0, err
	}
	if version == nil {
		return 0, nil
	}
	return *version, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultFeedLimit
	}
	return limit
}

func decodeRecords(records []models.EventRecord) ([]events.Event, error) {
	decoded := make([]events.Event, 0, len(records))
	for _, record := range records {
		event, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, *event)
	}
	return decoded, nil
}

func decodeRecord(record models.EventRecord) (*events.Event, error) {
	payload, err := events.DecodePayload(record.EventType, record.PayloadVersion, record.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "decoding event payload").
			WithDetails(map[string]any{"sequence_number": record.SequenceNumber})
	}

	metadata := map[string]any{}
	if len(record.Metadata) > 0 {
		if err := json.Unmarshal(record.Metadata, &metadata); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeSerialization, err, "decoding event metadata").
				WithDetails(map[string]any{"sequence_number": record.SequenceNumber})
		}
	}

	return &events.Event{
		EventID:          record.EventID,
		AggregateID:      record.AggregateID,
		AggregateType:    record.AggregateType,
		AggregateVersion: record.AggregateVersion,
		SequenceNumber:   record.SequenceNumber,
		Timestamp:        record.Timestamp,
		UserID:           record.UserID,
		Metadata:         metadata,
		PayloadVersion:   record.PayloadVersion,
		Payload:          payload,
	}, nil
}
