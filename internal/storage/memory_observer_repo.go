package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryObserverRepo реализует ObserverRepo в памяти.
// Используется как fallback, когда MariaDB и Redis недоступны.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryObserverRepo struct {
	mu   sync.RWMutex
	data map[string]ObserverPosition
}

// NewMemoryObserverRepo создает новый репозиторий в памяти
func NewMemoryObserverRepo() *MemoryObserverRepo {
	return &MemoryObserverRepo{data: make(map[string]ObserverPosition)}
}

// Save сохраняет позицию наблюдателя в памяти
func (r *MemoryObserverRepo) Save(ctx context.Context, pos ObserverPosition) error {
	if err := validateObserver(pos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now()
	}

	r.mu.Lock()
	r.data[pos.PlayerID] = pos
	r.mu.Unlock()
	return nil
}

// Load загружает позицию из памяти
func (r *MemoryObserverRepo) Load(ctx context.Context, playerID string) (ObserverPosition, bool, error) {
	if playerID == "" {
		return ObserverPosition{}, false, fmt.Errorf("недействительный playerID: пустой")
	}
	if err := ctx.Err(); err != nil {
		return ObserverPosition{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.data[playerID]
	return pos, ok, nil
}

// Delete удаляет позицию из памяти
func (r *MemoryObserverRepo) Delete(ctx context.Context, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[playerID]; !ok {
		return fmt.Errorf("позиция игрока %s: %w", playerID, ErrNotFound)
	}
	delete(r.data, playerID)
	return nil
}

// Count возвращает количество сохранённых позиций
func (r *MemoryObserverRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryObserverRepo) Close() error { return nil }
