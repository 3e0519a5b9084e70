package entity

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/annel0/meadow-world/internal/vec"
)

// ErrNoPrefab у сцены не указан путь префаба
var ErrNoPrefab = errors.New("не указана сцена")

// ErrNotFound сущность не найдена
var ErrNotFound = errors.New("сущность не найдена")

// EntityManager управляет всеми живыми сущностями процесса.
// Реальное клонирование сцен выполняет внешний движок; менеджер хранит
// серверную копию трансформаций и выдаёт идентификаторы.
type EntityManager struct {
	entities     map[ID]*Entity // Хранилище всех сущностей
	nextEntityID uint64         // Счетчик для генерации ID
	mu           sync.RWMutex   // Мьютекс для безопасного доступа
}

// NewEntityManager создаёт новый менеджер сущностей
func NewEntityManager() *EntityManager {
	return &EntityManager{
		entities:     make(map[ID]*Entity),
		nextEntityID: 0,
	}
}

// Instantiate клонирует сцену prefab в позиции pos
func (em *EntityManager) Instantiate(prefab string, pos vec.Vec3, yaw float64) (*Entity, error) {
	if prefab == "" {
		return nil, ErrNoPrefab
	}

	id := ID(atomic.AddUint64(&em.nextEntityID, 1))
	e := NewEntity(id, prefab, pos, yaw)

	em.mu.Lock()
	em.entities[id] = e
	em.mu.Unlock()

	return e, nil
}

// Destroy удаляет сущность. Повторное удаление не является ошибкой.
func (em *EntityManager) Destroy(id ID) {
	em.mu.Lock()
	delete(em.entities, id)
	em.mu.Unlock()
}

// Get возвращает снимок сущности
func (em *EntityManager) Get(id ID) (Entity, error) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	e, ok := em.entities[id]
	if !ok {
		return Entity{}, fmt.Errorf("сущность %d: %w", id, ErrNotFound)
	}
	return e.Snapshot(), nil
}

// Exists проверяет наличие сущности
func (em *EntityManager) Exists(id ID) bool {
	em.mu.RLock()
	defer em.mu.RUnlock()
	_, ok := em.entities[id]
	return ok
}

// SetTransform перемещает сущность
func (em *EntityManager) SetTransform(id ID, pos vec.Vec3, yaw float64) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	e, ok := em.entities[id]
	if !ok {
		return fmt.Errorf("сущность %d: %w", id, ErrNotFound)
	}
	e.Position = pos
	e.Yaw = yaw
	return nil
}

// SetHidden выставляет тег видимости слоя
func (em *EntityManager) SetHidden(id ID, hidden bool) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	e, ok := em.entities[id]
	if !ok {
		return fmt.Errorf("сущность %d: %w", id, ErrNotFound)
	}
	e.Hidden = hidden
	return nil
}

// Count возвращает количество живых сущностей
func (em *EntityManager) Count() int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.entities)
}
