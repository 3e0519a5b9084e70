package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/meadow-world/internal/persist"
	"github.com/google/uuid"
)

// Типы событий движка мира. Без точек: JetStream публикует в events.<type>.
const (
	TypeItemAdded        = "item_added"
	TypeItemRemoved      = "item_removed"
	TypeWorldLoaded      = "world_loaded"
	TypeWorldUnloaded    = "world_unloaded"
	TypeWorldSaved       = "world_saved"
	TypeActiveChanged    = "world_active"
	TypeReplicateSpawn   = "replicate_spawn"
	TypeReplicateDestroy = "replicate_destroy"
	TypeLayerTags        = "layer_tags"
	TypeLayerTable       = "layer_table"
	TypeObserverMove     = "observer_move"
)

// Приоритеты для back-pressure in-memory шины
const (
	PriorityLow      = 1
	PriorityNormal   = 5
	PriorityCritical = 9
)

// NewEnvelope сериализует payload в JSON и заворачивает в Envelope
func NewEnvelope(source, eventType string, priority int, payload interface{}) (*Envelope, error) {
	data, err := persist.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("eventbus: %s: %w", eventType, err)
	}

	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает JSON-полезную нагрузку конверта
func (ev *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(ev.Payload, v)
}
