package layers

import (
	"context"

	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/world"
)

// WorldEvent полезная нагрузка world_loaded / world_unloaded
type WorldEvent struct {
	World string `json:"world"`
	Layer int    `json:"layer"`
}

// ActiveEvent полезная нагрузка world_active
type ActiveEvent struct {
	Previous int `json:"previous"`
	Active   int `json:"active"`
}

// OnWorldLoaded подписывает обработчик на загрузку мира
func (m *Manager) OnWorldLoaded(fn func(*world.World)) {
	m.handlersMu.Lock()
	m.onLoaded = append(m.onLoaded, fn)
	m.handlersMu.Unlock()
}

// OnWorldUnloaded подписывает обработчик на выгрузку мира
func (m *Manager) OnWorldUnloaded(fn func(layer int, worldID string)) {
	m.handlersMu.Lock()
	m.onUnloaded = append(m.onUnloaded, fn)
	m.handlersMu.Unlock()
}

// OnActiveWorldChanged подписывает обработчик на смену активного слоя
func (m *Manager) OnActiveWorldChanged(fn func(prev, next int)) {
	m.handlersMu.Lock()
	m.onActive = append(m.onActive, fn)
	m.handlersMu.Unlock()
}

func (m *Manager) fireLoaded(ctx context.Context, w *world.World) {
	m.handlersMu.RLock()
	handlers := append([]func(*world.World){}, m.onLoaded...)
	m.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(w)
	}
	m.publish(ctx, eventbus.TypeWorldLoaded, WorldEvent{World: w.ID(), Layer: w.Layer()})
}

func (m *Manager) fireUnloaded(ctx context.Context, layer int, worldID string) {
	m.handlersMu.RLock()
	handlers := append([]func(int, string){}, m.onUnloaded...)
	m.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(layer, worldID)
	}
	m.publish(ctx, eventbus.TypeWorldUnloaded, WorldEvent{World: worldID, Layer: layer})
}

func (m *Manager) fireActive(ctx context.Context, prev, next int) {
	m.handlersMu.RLock()
	handlers := append([]func(int, int){}, m.onActive...)
	m.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(prev, next)
	}
	m.publish(ctx, eventbus.TypeActiveChanged, ActiveEvent{Previous: prev, Active: next})
}

func (m *Manager) publish(ctx context.Context, eventType string, payload interface{}) {
	if m.svc.Bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(EventSource, eventType, eventbus.PriorityCritical, payload)
	if err == nil {
		err = m.svc.Bus.Publish(ctx, ev)
	}
	if err != nil {
		logging.Debug("layers: публикация %s: %v", eventType, err)
	}
}
