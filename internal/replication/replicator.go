// Package replication описывает порт сетевого транспорта: репликацию объектов
// и широковещательные RPC. Сам транспорт является внешним коллаборатором.
package replication

import (
	"context"

	"github.com/annel0/meadow-world/internal/vec"
)

// EntityState состояние сущности, передаваемое наблюдателям при появлении
type EntityState struct {
	EntityID uint64   `json:"entity_id"`
	Prefab   string   `json:"prefab"`
	Layer    int      `json:"layer"`
	ItemID   string   `json:"item_id,omitempty"`
	Position vec.Vec3 `json:"position"`
	Yaw      float64  `json:"yaw"`
}

// LayerTag тег видимости объекта слоя
type LayerTag struct {
	EntityID uint64 `json:"entity_id"`
	Layer    int    `json:"layer"`
	Hidden   bool   `json:"hidden"`
}

// LayerTable полное значение таблицы слоёв (реплицируется целиком)
type LayerTable struct {
	Worlds map[int]string `json:"worlds"` // слой → id мира
	Active int            `json:"active"`
}

// ObserverMove перемещение наблюдателя ко входу
type ObserverMove struct {
	PlayerID string   `json:"player_id"`
	Layer    int      `json:"layer"`
	Entrance string   `json:"entrance"`
	Position vec.Vec3 `json:"position"`
	Yaw      float64  `json:"yaw"`
}

// Replicator отправляет изменения авторитетного узла наблюдателям.
// Сообщения независимы: появление сущности и её тег видимости могут прийти
// в разных тиках.
type Replicator interface {
	ReplicateSpawn(ctx context.Context, st EntityState) error
	ReplicateDestroy(ctx context.Context, entityID uint64, layer int) error
	BroadcastLayerTags(ctx context.Context, tags []LayerTag) error
	ReplicateLayerTable(ctx context.Context, table LayerTable) error
	BroadcastObserverMove(ctx context.Context, move ObserverMove) error
}

// Nop репликатор для одиночной игры и тестов
type Nop struct{}

func (Nop) ReplicateSpawn(context.Context, EntityState) error         { return nil }
func (Nop) ReplicateDestroy(context.Context, uint64, int) error       { return nil }
func (Nop) BroadcastLayerTags(context.Context, []LayerTag) error      { return nil }
func (Nop) ReplicateLayerTable(context.Context, LayerTable) error     { return nil }
func (Nop) BroadcastObserverMove(context.Context, ObserverMove) error { return nil }
