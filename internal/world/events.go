package world

import (
	"context"

	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// EventSource имя источника событий мира в шине
const EventSource = "world"

// ItemEvent полезная нагрузка событий item_added / item_removed
type ItemEvent struct {
	World         string             `json:"world"`
	Layer         int                `json:"layer"`
	NodeID        NodeID             `json:"node_id"`
	EntityID      uint64             `json:"entity_id"`
	ItemID        string             `json:"item_id"`
	Anchor        vec.Vec2           `json:"anchor"`
	Rotation      grid.Rotation      `json:"rotation"`
	Category      grid.Category      `json:"category"`
	PlacementType grid.PlacementType `json:"placement_type"`
}

// SaveEvent полезная нагрузка события world_saved
type SaveEvent struct {
	World   string `json:"world"`
	Layer   int    `json:"layer"`
	Profile string `json:"profile"`
	Items   int    `json:"items"`
}

// OnItemAdded подписывает обработчик на появление обитателей.
// Обработчики не должны менять индекс мира.
func (w *World) OnItemAdded(fn func(*NodeLink)) {
	w.handlersMu.Lock()
	w.onAdded = append(w.onAdded, fn)
	w.handlersMu.Unlock()
}

// OnItemRemoved подписывает обработчик на удаление обитателей
func (w *World) OnItemRemoved(fn func(*NodeLink)) {
	w.handlersMu.Lock()
	w.onRemoved = append(w.onRemoved, fn)
	w.handlersMu.Unlock()
}

func (w *World) itemEvent(link *NodeLink) ItemEvent {
	return ItemEvent{
		World:         w.data.ID,
		Layer:         w.layer,
		NodeID:        link.ID,
		EntityID:      uint64(link.Entity),
		ItemID:        link.ItemID,
		Anchor:        link.Anchor,
		Rotation:      link.Rotation,
		Category:      link.Category,
		PlacementType: link.PlacementType,
	}
}

func (w *World) fireAdded(ctx context.Context, link *NodeLink) {
	w.handlersMu.RLock()
	handlers := append([]func(*NodeLink){}, w.onAdded...)
	w.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(link)
	}
	w.publish(ctx, eventbus.TypeItemAdded, eventbus.PriorityNormal, w.itemEvent(link))
}

func (w *World) fireRemoved(ctx context.Context, link *NodeLink) {
	w.handlersMu.RLock()
	handlers := append([]func(*NodeLink){}, w.onRemoved...)
	w.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(link)
	}
	w.publish(ctx, eventbus.TypeItemRemoved, eventbus.PriorityNormal, w.itemEvent(link))
}

// publish отправляет событие в шину, если она настроена. Ошибка шины не
// отменяет операцию над миром.
func (w *World) publish(ctx context.Context, eventType string, priority int, payload interface{}) {
	if w.svc.Bus == nil {
		return
	}

	ev, err := eventbus.NewEnvelope(EventSource, eventType, priority, payload)
	if err == nil {
		err = w.svc.Bus.Publish(ctx, ev)
	}
	if err != nil {
		logging.Debug("world %s: публикация %s: %v", w.data.ID, eventType, err)
	}
}
