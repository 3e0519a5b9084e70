package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/meadow-world/internal/vec"
)

// ObserverPosition последняя известная позиция наблюдателя (игрока).
// Позиция привязана к PlayerID (постоянный идентификатор аккаунта),
// что позволяет вернуть игрока в тот же мир и к тому же входу.
type ObserverPosition struct {
	PlayerID  string    `json:"player_id"`
	WorldID   string    `json:"world_id"`
	Entrance  string    `json:"entrance,omitempty"`
	Position  vec.Vec3  `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ObserverRepo определяет интерфейс хранилища позиций наблюдателей
type ObserverRepo interface {
	// Save сохраняет позицию наблюдателя
	Save(ctx context.Context, pos ObserverPosition) error

	// Load загружает позицию. bool = false если позиция ещё не сохранялась
	Load(ctx context.Context, playerID string) (ObserverPosition, bool, error)

	// Delete удаляет сохраненную позицию
	Delete(ctx context.Context, playerID string) error

	Close() error
}

func validateObserver(pos ObserverPosition) error {
	if pos.PlayerID == "" {
		return fmt.Errorf("недействительный playerID: пустой")
	}
	if pos.WorldID == "" {
		return fmt.Errorf("недействительный worldID для игрока %s", pos.PlayerID)
	}
	return nil
}
