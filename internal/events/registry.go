package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// CurrentPayloadVersion is the schema version newly constructed events carry.
const CurrentPayloadVersion = 1

type decoderFunc func(payload json.RawMessage) (Payload, error)

type registryKey struct {
	eventType enums.EventType
	version   int
}

// DecoderRegistry maps (event type, payload version) pairs to payload
// decoders, so stored JSON always rehydrates through an explicit schema.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.EventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.EventType, version int, payload json.RawMessage) (Payload, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}

func decodeInto[T Payload](payload json.RawMessage) (Payload, error) {
	var decoded T
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

var defaultRegistry = func() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventTypeItemCreated, CurrentPayloadVersion, decodeInto[ItemCreated])
	r.Register(enums.EventTypeItemUpdated, CurrentPayloadVersion, decodeInto[ItemUpdated])
	r.Register(enums.EventTypeItemStatusChanged, CurrentPayloadVersion, decodeInto[ItemStatusChanged])
	r.Register(enums.EventTypeItemDeleted, CurrentPayloadVersion, decodeInto[ItemDeleted])
	return r
}()

// DecodePayload rehydrates a stored payload through the default registry.
func DecodePayload(eventType enums.EventType, version int, payload json.RawMessage) (Payload, error) {
	return defaultRegistry.Decode(eventType, version, payload)
}
