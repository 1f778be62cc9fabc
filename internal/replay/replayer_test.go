package replay

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/internal/events"
	"github.com/swapcircle/catalog-backend/internal/eventstore"
	"github.com/swapcircle/catalog-backend/internal/items"
	"github.com/swapcircle/catalog-backend/pkg/db"
	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
	"github.com/swapcircle/catalog-backend/pkg/logger"
)

const replayTestDDL = `
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

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	image_urls TEXT NOT NULL DEFAULT '{}',
	location_lat REAL NOT NULL DEFAULT 0,
	location_lon REAL NOT NULL DEFAULT 0,
	owner_id TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME,
	updated_at DATETIME
);
`

type replayFixture struct {
	conn     *gorm.DB
	store    eventstore.Repository
	repo     *items.Repository
	replayer *Replayer
}

func setupReplayFixture(t *testing.T) *replayFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(replayTestDDL).Error)

	logg := logger.New(logger.Options{ServiceName: "replay-test", Output: io.Discard})
	store := eventstore.NewRepository(conn)
	repo := items.NewRepository(conn)

	replayer, err := NewReplayer(db.FromGorm(conn), store, repo, logg)
	require.NoError(t, err)

	return &replayFixture{conn: conn, store: store, repo: repo, replayer: replayer}
}

var replayBase = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// appendAt writes an event with an explicit occurrence time so time-travel
// boundaries are exact.
func (fx *replayFixture) appendAt(t *testing.T, aggregateID uuid.UUID, version int, at time.Time, payload events.Payload) {
	t.Helper()

	event, err := events.New(aggregateID, "user-owner", payload)
	require.NoError(t, err)
	event.AggregateVersion = version
	event.Timestamp = at

	_, err = fx.store.Append(context.Background(), event)
	require.NoError(t, err)
}

// seedCameraHistory writes the canonical three-event lifecycle: listed, then
// re-described, then swapped away.
func (fx *replayFixture) seedCameraHistory(t *testing.T) uuid.UUID {
	t.Helper()
	aggregateID := uuid.New()

	fx.appendAt(t, aggregateID, 1, replayBase, events.ItemCreated{
		Name:        "Vintage Camera",
		Description: "1970s rangefinder",
		Category:    "electronics",
		ImageURLs:   []string{"https://img.example/camera.jpg"},
		LocationLat: 40.7,
		LocationLon: -74.0,
		OwnerID:     "user-owner",
		Status:      enums.ItemStatusActive,
	})
	fx.appendAt(t, aggregateID, 2, replayBase.Add(time.Hour), events.ItemUpdated{
		Changes:        map[string]any{"description": "freshly serviced, new seals"},
		PreviousValues: map[string]any{"description": "1970s rangefinder"},
	})
	fx.appendAt(t, aggregateID, 3, replayBase.Add(2*time.Hour), events.ItemStatusChanged{
		OldStatus: enums.ItemStatusActive,
		NewStatus: enums.ItemStatusSwapped,
		Reason:    "traded for a turntable",
	})
	return aggregateID
}

func TestCurrentState(t *testing.T) {
	fx := setupReplayFixture(t)
	aggregateID := fx.seedCameraHistory(t)

	state, err := fx.replayer.CurrentState(context.Background(), aggregateID)
	require.NoError(t, err)

	assert.Equal(t, 3, state.EventCount)
	assert.Equal(t, "freshly serviced, new seals", state.Current.Description)
	assert.Equal(t, enums.ItemStatusSwapped, state.Current.Status)
	assert.True(t, state.CreatedAt.Equal(replayBase))
	assert.True(t, state.LastModifiedAt.Equal(replayBase.Add(2*time.Hour)))

	require.Len(t, state.History, 3)
	assert.Equal(t, enums.EventTypeItemCreated, state.History[0].Type)
	assert.Equal(t, enums.EventTypeItemUpdated, state.History[1].Type)
	assert.Equal(t, enums.EventTypeItemStatusChanged, state.History[2].Type)
	for i, summary := range state.History {
		assert.Equal(t, i+1, summary.Version)
	}
}

func TestCurrentStateUnknownAggregate(t *testing.T) {
	fx := setupReplayFixture(t)

	_, err := fx.replayer.CurrentState(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStateAt(t *testing.T) {
	fx := setupReplayFixture(t)
	aggregateID := fx.seedCameraHistory(t)
	ctx := context.Background()

	t.Run("betweenEvents", func(t *testing.T) {
		snapshot, err := fx.replayer.StateAt(ctx, aggregateID, replayBase.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, snapshot.EventCount)
		assert.Equal(t, "1970s rangefinder", snapshot.State.Description)
		assert.Equal(t, enums.ItemStatusActive, snapshot.State.Status)
	})

	t.Run("exactEventTimeIncludesEvent", func(t *testing.T) {
		snapshot, err := fx.replayer.StateAt(ctx, aggregateID, replayBase.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, snapshot.EventCount)
		assert.Equal(t, "freshly serviced, new seals", snapshot.State.Description)
		assert.Equal(t, 2, snapshot.Version)
	})

	t.Run("afterLastEventMatchesCurrent", func(t *testing.T) {
		snapshot, err := fx.replayer.StateAt(ctx, aggregateID, replayBase.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 3, snapshot.EventCount)
		assert.Equal(t, enums.ItemStatusSwapped, snapshot.State.Status)
	})

	t.Run("beforeFirstEvent", func(t *testing.T) {
		_, err := fx.replayer.StateAt(ctx, aggregateID, replayBase.Add(-time.Minute))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	})

	t.Run("zeroTarget", func(t *testing.T) {
		_, err := fx.replayer.StateAt(ctx, aggregateID, time.Time{})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})
}

func TestAuditTrail(t *testing.T) {
	fx := setupReplayFixture(t)
	aggregateID := fx.seedCameraHistory(t)
	ctx := context.Background()

	trail, err := fx.replayer.AuditTrail(ctx, aggregateID, nil)
	require.NoError(t, err)
	require.Len(t, trail, 3, "every event appears exactly once")

	assert.Equal(t, enums.EventTypeItemCreated, trail[0].EventType)
	assert.Equal(t, "user-owner", trail[0].UserID)

	assert.Equal(t, "freshly serviced, new seals", trail[1].Changes["description"])
	assert.Equal(t, "1970s rangefinder", trail[1].PreviousValues["description"])

	assert.Equal(t, enums.ItemStatusActive, trail[2].OldStatus)
	assert.Equal(t, enums.ItemStatusSwapped, trail[2].NewStatus)
	assert.Equal(t, "traded for a turntable", trail[2].Reason)

	filter := enums.EventTypeItemUpdated
	filtered, err := fx.replayer.AuditTrail(ctx, aggregateID, &filter)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, enums.EventTypeItemUpdated, filtered[0].EventType)

	empty, err := fx.replayer.AuditTrail(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty, "no events means an empty trail, not an error")
}

func TestRebuildMatchesIncrementalProjection(t *testing.T) {
	fx := setupReplayFixture(t)
	ctx := context.Background()

	logg := logger.New(logger.Options{ServiceName: "replay-test", Output: io.Discard})
	service, err := items.NewService(db.FromGorm(fx.conn), fx.store, fx.repo, logg)
	require.NoError(t, err)

	created, err := service.CreateItem(ctx, items.CreateItemInput{
		UserID:      "user-owner",
		Name:        "Vintage Camera",
		Description: "1970s rangefinder",
		Category:    "electronics",
		ImageURLs:   []string{"https://img.example/camera.jpg"},
		LocationLat: 40.7,
		LocationLon: -74.0,
		OwnerID:     "user-owner",
	})
	require.NoError(t, err)
	_, err = service.UpdateItem(ctx, items.UpdateItemInput{
		UserID:  "user-owner",
		ItemID:  created.ID,
		Changes: map[string]any{"description": "freshly serviced"},
	})
	require.NoError(t, err)
	_, err = service.ChangeItemStatus(ctx, items.ChangeItemStatusInput{
		UserID:    "user-owner",
		ItemID:    created.ID,
		NewStatus: enums.ItemStatusSwapped,
	})
	require.NoError(t, err)

	incremental, err := fx.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)

	rebuilt, err := fx.replayer.Rebuild(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, incremental.Name, rebuilt.Name)
	assert.Equal(t, incremental.Description, rebuilt.Description)
	assert.Equal(t, incremental.Status, rebuilt.Status)
	assert.Equal(t, incremental.OwnerID, rebuilt.OwnerID)

	stored, err := fx.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, rebuilt.Description, stored.Description)
	assert.Equal(t, rebuilt.Status, stored.Status)
}

func TestRebuildRepairsTamperedRow(t *testing.T) {
	fx := setupReplayFixture(t)
	ctx := context.Background()
	aggregateID := fx.seedCameraHistory(t)

	// Derive the row once, then corrupt it out-of-band.
	_, err := fx.replayer.Rebuild(ctx, aggregateID)
	require.NoError(t, err)
	require.NoError(t, fx.conn.Exec("UPDATE items SET name = 'Tampered', status = 'active' WHERE id = ?", aggregateID).Error)

	rebuilt, err := fx.replayer.Rebuild(ctx, aggregateID)
	require.NoError(t, err)
	assert.Equal(t, "Vintage Camera", rebuilt.Name)
	assert.Equal(t, enums.ItemStatusSwapped, rebuilt.Status)

	stored, err := fx.repo.FindByID(ctx, aggregateID)
	require.NoError(t, err)
	assert.Equal(t, "Vintage Camera", stored.Name)
}

func TestRebuildUnknownAggregate(t *testing.T) {
	fx := setupReplayFixture(t)

	_, err := fx.replayer.Rebuild(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRebuildAll(t *testing.T) {
	fx := setupReplayFixture(t)
	ctx := context.Background()

	first := fx.seedCameraHistory(t)
	second := uuid.New()
	fx.appendAt(t, second, 1, replayBase, events.ItemCreated{
		Name:        "Tube Radio",
		Description: "Bakelite case, hums nicely",
		Category:    "electronics",
		ImageURLs:   []string{"https://img.example/radio.jpg"},
		LocationLat: 40.7,
		LocationLon: -74.0,
		OwnerID:     "user-owner",
		Status:      enums.ItemStatusActive,
	})

	count, err := fx.replayer.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []uuid.UUID{first, second} {
		_, err := fx.repo.FindByID(ctx, id)
		require.NoError(t, err)
	}
}
