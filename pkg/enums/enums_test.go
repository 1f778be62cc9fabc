package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemStatus(t *testing.T) {
	for _, status := range []ItemStatus{ItemStatusActive, ItemStatusArchived, ItemStatusSwapped} {
		assert.True(t, status.IsValid())

		parsed, err := ParseItemStatus(status.String())
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}

	assert.False(t, ItemStatus("vanished").IsValid())
	_, err := ParseItemStatus("vanished")
	require.Error(t, err)
}

func TestEventType(t *testing.T) {
	for _, eventType := range []EventType{
		EventTypeItemCreated,
		EventTypeItemUpdated,
		EventTypeItemStatusChanged,
		EventTypeItemDeleted,
	} {
		assert.True(t, eventType.IsValid())

		parsed, err := ParseEventType(eventType.String())
		require.NoError(t, err)
		assert.Equal(t, eventType, parsed)
	}

	assert.False(t, EventType("item_materialized").IsValid())
	_, err := ParseEventType("item_materialized")
	require.Error(t, err)
}

func TestAggregateType(t *testing.T) {
	assert.Equal(t, "Item", AggregateTypeItem.String())
	assert.True(t, AggregateTypeItem.IsValid())
	assert.False(t, AggregateType("Order").IsValid())
}
