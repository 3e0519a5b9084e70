package replication

import (
	"context"

	"github.com/annel0/meadow-world/internal/eventbus"
)

// BusReplicator публикует репликацию в шину событий; сетевой слой
// подписывается на неё и рассылает сообщения клиентам.
type BusReplicator struct {
	bus    eventbus.EventBus
	source string
}

// NewBusReplicator создаёт репликатор поверх шины
func NewBusReplicator(bus eventbus.EventBus, source string) *BusReplicator {
	if source == "" {
		source = "world-host"
	}
	return &BusReplicator{bus: bus, source: source}
}

func (r *BusReplicator) publish(ctx context.Context, eventType string, priority int, payload interface{}) error {
	ev, err := eventbus.NewEnvelope(r.source, eventType, priority, payload)
	if err != nil {
		return err
	}
	return r.bus.Publish(ctx, ev)
}

// ReplicateSpawn сообщает о новой сущности
func (r *BusReplicator) ReplicateSpawn(ctx context.Context, st EntityState) error {
	return r.publish(ctx, eventbus.TypeReplicateSpawn, eventbus.PriorityCritical, st)
}

// ReplicateDestroy сообщает об удалении сущности
func (r *BusReplicator) ReplicateDestroy(ctx context.Context, entityID uint64, layer int) error {
	return r.publish(ctx, eventbus.TypeReplicateDestroy, eventbus.PriorityCritical, struct {
		EntityID uint64 `json:"entity_id"`
		Layer    int    `json:"layer"`
	}{entityID, layer})
}

// BroadcastLayerTags рассылает пересчитанные теги видимости
func (r *BusReplicator) BroadcastLayerTags(ctx context.Context, tags []LayerTag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.publish(ctx, eventbus.TypeLayerTags, eventbus.PriorityNormal, tags)
}

// ReplicateLayerTable рассылает таблицу слоёв целиком
func (r *BusReplicator) ReplicateLayerTable(ctx context.Context, table LayerTable) error {
	return r.publish(ctx, eventbus.TypeLayerTable, eventbus.PriorityCritical, table)
}

// BroadcastObserverMove рассылает телепорт наблюдателя
func (r *BusReplicator) BroadcastObserverMove(ctx context.Context, move ObserverMove) error {
	return r.publish(ctx, eventbus.TypeObserverMove, eventbus.PriorityNormal, move)
}
