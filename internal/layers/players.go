package layers

import (
	"context"
	"fmt"
	"sort"

	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// AttachPlayer привязывает игрока к слою
func (m *Manager) AttachPlayer(playerID string, layer int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.worlds[layer]; !ok {
		return fmt.Errorf("слой %d: %w", layer, ErrUnknownLayer)
	}
	m.players[playerID] = layer
	return nil
}

// DetachPlayer отвязывает игрока. Мир с ShouldUnloadOnExit выгружается,
// когда с него уходит последний игрок.
func (m *Manager) DetachPlayer(ctx context.Context, playerID string) error {
	m.mu.Lock()
	layer, ok := m.players[playerID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", playerID, ErrUnknownPlayer)
	}
	delete(m.players, playerID)
	m.mu.Unlock()

	return m.unloadIfAbandoned(ctx, layer)
}

// PlayerLayer возвращает слой игрока
func (m *Manager) PlayerLayer(playerID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	layer, ok := m.players[playerID]
	return layer, ok
}

// PlayersOnLayer возвращает игроков слоя по алфавиту
func (m *Manager) PlayersOnLayer(layer int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playersOnLayerLocked(layer)
}

func (m *Manager) playersOnLayerLocked(layer int) []string {
	out := []string{}
	for id, l := range m.players {
		if l == layer {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Manager) unloadIfAbandoned(ctx context.Context, layer int) error {
	w, ok := m.GetWorld(layer)
	if !ok || !w.Data().ShouldUnloadOnExit {
		return nil
	}
	if len(m.PlayersOnLayer(layer)) > 0 {
		return nil
	}
	return m.UnloadWorld(ctx, layer)
}

// MoveObserverToEntrance переносит наблюдателя к именованному входу мира
// на слое. Для локального наблюдателя слой становится активным.
func (m *Manager) MoveObserverToEntrance(ctx context.Context, playerID string, layer int, entranceID string) (replication.ObserverMove, error) {
	w, ok := m.GetWorld(layer)
	if !ok {
		return replication.ObserverMove{}, fmt.Errorf("слой %d: %w", layer, ErrUnknownLayer)
	}
	entrance, ok := w.Data().Entrance(entranceID)
	if !ok {
		return replication.ObserverMove{}, fmt.Errorf("%s/%s: %w", w.ID(), entranceID, ErrUnknownEntrance)
	}

	var yaw float64
	if entrance.Rotation != "" {
		if rot, err := grid.ParseRotation(entrance.Rotation); err == nil {
			yaw = rot.Yaw()
		}
	}

	move := replication.ObserverMove{
		PlayerID: playerID,
		Layer:    layer,
		Entrance: entranceID,
		Position: w.ToWorld(entrance.Cell(), true),
		Yaw:      yaw,
	}

	m.mu.Lock()
	prev, hadPrev := m.players[playerID]
	m.players[playerID] = layer
	m.mu.Unlock()

	if err := m.svc.Replicator.BroadcastObserverMove(ctx, move); err != nil {
		logging.Warn("Рассылка перемещения %s: %v", playerID, err)
	}

	if m.cfg.Observers != nil {
		err := m.cfg.Observers.Save(ctx, storage.ObserverPosition{
			PlayerID: playerID,
			WorldID:  w.ID(),
			Entrance: entranceID,
			Position: move.Position,
		})
		if err != nil {
			logging.Warn("Сохранение позиции %s: %v", playerID, err)
		}
	}

	if playerID == m.cfg.LocalPlayer {
		if err := m.SetActiveWorld(ctx, layer); err != nil {
			return move, err
		}
	}

	if hadPrev && prev != layer {
		if err := m.unloadIfAbandoned(ctx, prev); err != nil {
			logging.Warn("Выгрузка покинутого слоя %d: %v", prev, err)
		}
	}

	logging.Debug("Наблюдатель %s → %s/%s (слой %d)", playerID, w.ID(), entranceID, layer)
	return move, nil
}

// ResumeObserver возвращает наблюдателя к последнему сохранённому входу:
// загружает мир при необходимости и перемещает к входу.
func (m *Manager) ResumeObserver(ctx context.Context, playerID, fallbackWorld, fallbackEntrance string) (replication.ObserverMove, error) {
	worldID, entranceID := fallbackWorld, fallbackEntrance
	if m.cfg.Observers != nil {
		pos, found, err := m.cfg.Observers.Load(ctx, playerID)
		if err != nil {
			logging.Warn("Загрузка позиции %s: %v", playerID, err)
		}
		if found && pos.Entrance != "" {
			worldID, entranceID = pos.WorldID, pos.Entrance
		}
	}

	w, err := m.LoadWorld(ctx, worldID)
	if err != nil {
		return replication.ObserverMove{}, err
	}
	return m.MoveObserverToEntrance(ctx, playerID, w.Layer(), entranceID)
}
