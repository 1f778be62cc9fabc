package eventstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/internal/events"
	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
)

const eventStoreDDL = `
CREATE TABLE IF NOT EXISTS event_store (
	sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_version INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	user_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	payload_version INTEGER NOT NULL DEFAULT 1,
	metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE UNIQUE INDEX IF NOT EXISTS uidx_event_store_event_id ON event_store (event_id);
CREATE UNIQUE INDEX IF NOT EXISTS uidx_aggregate_version ON event_store (aggregate_id, aggregate_type, aggregate_version);
`

func setupEventStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(eventStoreDDL).Error)
	return conn
}

func createdEvent(t *testing.T, aggregateID uuid.UUID, version int) *events.Event {
	t.Helper()

	event, err := events.New(aggregateID, "user-1", events.ItemCreated{
		Name:        "Vintage Camera",
		Description: "1970s rangefinder",
		Category:    "electronics",
		LocationLat: 40.7,
		LocationLon: -74.0,
		OwnerID:     "user-1",
		Status:      enums.ItemStatusActive,
	})
	require.NoError(t, err)
	event.AggregateVersion = version
	return event
}

func updatedEvent(t *testing.T, aggregateID uuid.UUID, version int) *events.Event {
	t.Helper()

	event, err := events.New(aggregateID, "user-1", events.ItemUpdated{
		Changes:        map[string]any{"description": "freshly serviced"},
		PreviousValues: map[string]any{"description": "1970s rangefinder"},
	})
	require.NoError(t, err)
	event.AggregateVersion = version
	return event
}

func TestAppendAssignsSequenceNumbers(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first := createdEvent(t, uuid.New(), 1)
	second := createdEvent(t, uuid.New(), 1)

	seq1, err := repo.Append(ctx, first)
	require.NoError(t, err)
	seq2, err := repo.Append(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, int64(1), seq1)
	assert.Equal(t, int64(2), seq2)
	assert.Equal(t, seq1, first.SequenceNumber)
	assert.Equal(t, seq2, second.SequenceNumber)
}

func TestAppendRejectsUnassignedVersion(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)

	event := createdEvent(t, uuid.New(), 1)
	event.AggregateVersion = 0

	_, err := repo.Append(context.Background(), event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAppendConflictOnDuplicateVersion(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	aggregateID := uuid.New()
	_, err := repo.Append(ctx, createdEvent(t, aggregateID, 1))
	require.NoError(t, err)

	// A second writer that read version 1 and tries to claim 2 at the same
	// time as us must lose the race deterministically.
	_, err = repo.Append(ctx, updatedEvent(t, aggregateID, 2))
	require.NoError(t, err)

	_, err = repo.Append(ctx, updatedEvent(t, aggregateID, 2))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, aggregateID, details["aggregate_id"])
}

func TestAppendConflictOnDuplicateEventID(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	aggregateID := uuid.New()
	first := createdEvent(t, aggregateID, 1)
	_, err := repo.Append(ctx, first)
	require.NoError(t, err)

	// A replayed command reusing the same event id must surface as an event
	// id conflict, not as a version claim.
	duplicate := updatedEvent(t, aggregateID, 2)
	duplicate.EventID = first.EventID

	_, err = repo.Append(ctx, duplicate)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, "event id already recorded", typed.Message())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, first.EventID, details["event_id"])
}

func TestListForAggregateOrdersBySequence(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	aggregateID := uuid.New()
	otherID := uuid.New()

	_, err := repo.Append(ctx, createdEvent(t, aggregateID, 1))
	require.NoError(t, err)
	_, err = repo.Append(ctx, createdEvent(t, otherID, 1))
	require.NoError(t, err)
	_, err = repo.Append(ctx, updatedEvent(t, aggregateID, 2))
	require.NoError(t, err)

	history, err := repo.ListForAggregate(ctx, aggregateID, enums.AggregateTypeItem)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, enums.EventTypeItemCreated, history[0].Type())
	assert.Equal(t, enums.EventTypeItemUpdated, history[1].Type())
	assert.Equal(t, 1, history[0].AggregateVersion)
	assert.Equal(t, 2, history[1].AggregateVersion)
	assert.Less(t, history[0].SequenceNumber, history[1].SequenceNumber)
}

func TestListForAggregateDecodesPayloads(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	aggregateID := uuid.New()
	original := createdEvent(t, aggregateID, 1)
	original.WithMetadata(map[string]any{"source": "import"})
	_, err := repo.Append(ctx, original)
	require.NoError(t, err)

	history, err := repo.ListForAggregate(ctx, aggregateID, enums.AggregateTypeItem)
	require.NoError(t, err)
	require.Len(t, history, 1)

	payload, ok := history[0].Payload.(events.ItemCreated)
	require.True(t, ok)
	assert.Equal(t, "Vintage Camera", payload.Name)
	assert.Equal(t, enums.ItemStatusActive, payload.Status)
	assert.Equal(t, "import", history[0].Metadata["source"])
	assert.Equal(t, original.EventID, history[0].EventID)
}

func TestListByTypeFiltersSince(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	early := createdEvent(t, uuid.New(), 1)
	early.Timestamp = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := createdEvent(t, uuid.New(), 1)
	late.Timestamp = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Append(ctx, early)
	require.NoError(t, err)
	_, err = repo.Append(ctx, late)
	require.NoError(t, err)
	_, err = repo.Append(ctx, updatedEvent(t, early.AggregateID, 2))
	require.NoError(t, err)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	feed, err := repo.ListByType(ctx, enums.EventTypeItemCreated, &cutoff, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, late.AggregateID, feed[0].AggregateID)

	feed, err = repo.ListByType(ctx, enums.EventTypeItemCreated, nil, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 2)
}

func TestListAllPagesBySequence(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	aggregateID := uuid.New()
	_, err := repo.Append(ctx, createdEvent(t, aggregateID, 1))
	require.NoError(t, err)
	_, err = repo.Append(ctx, updatedEvent(t, aggregateID, 2))
	require.NoError(t, err)
	_, err = repo.Append(ctx, updatedEvent(t, aggregateID, 3))
	require.NoError(t, err)

	page, err := repo.ListAll(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := repo.ListAll(ctx, page[1].SequenceNumber, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(3), rest[0].SequenceNumber)
}

func TestListAggregateIDs(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	_, err := repo.Append(ctx, createdEvent(t, first, 1))
	require.NoError(t, err)
	_, err = repo.Append(ctx, updatedEvent(t, first, 2))
	require.NoError(t, err)
	_, err = repo.Append(ctx, createdEvent(t, second, 1))
	require.NoError(t, err)

	ids, err := repo.ListAggregateIDs(ctx, enums.AggregateTypeItem)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first, second}, ids)
}

func TestCurrentVersion(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	aggregateID := uuid.New()

	version, err := repo.CurrentVersion(ctx, aggregateID, enums.AggregateTypeItem)
	require.NoError(t, err)
	assert.Equal(t, 0, version, "no events yet")

	_, err = repo.Append(ctx, createdEvent(t, aggregateID, 1))
	require.NoError(t, err)
	_, err = repo.Append(ctx, updatedEvent(t, aggregateID, 2))
	require.NoError(t, err)

	version, err = repo.CurrentVersion(ctx, aggregateID, enums.AggregateTypeItem)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestAppendSerializationFailure(t *testing.T) {
	conn := setupEventStoreTestDB(t)
	repo := NewRepository(conn)

	event := createdEvent(t, uuid.New(), 1)
	event.Metadata = map[string]any{"bad": make(chan int)}

	_, err := repo.Append(context.Background(), event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSerialization))
}
