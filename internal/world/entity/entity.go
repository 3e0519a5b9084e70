package entity

import (
	"github.com/annel0/meadow-world/internal/vec"
)

// ID идентификатор живой сущности сцены
type ID uint64

// Entity экземпляр сцены (клон префаба), существующий в мире.
// Позиция и поворот живут только здесь; связи сетки читают их отсюда.
type Entity struct {
	ID       ID       // Уникальный идентификатор
	Prefab   string   // Путь к сцене, из которой создана сущность
	Position vec.Vec3 // Мировая позиция
	Yaw      float64  // Поворот вокруг вертикальной оси, градусы
	Hidden   bool     // Тег видимости слоя
	Tags     map[string]string
}

// NewEntity создаёт сущность с указанным ID
func NewEntity(id ID, prefab string, pos vec.Vec3, yaw float64) *Entity {
	return &Entity{
		ID:       id,
		Prefab:   prefab,
		Position: pos,
		Yaw:      yaw,
		Tags:     make(map[string]string),
	}
}

// Snapshot возвращает копию сущности для чтения вне менеджера
func (e *Entity) Snapshot() Entity {
	cp := *e
	cp.Tags = make(map[string]string, len(e.Tags))
	for k, v := range e.Tags {
		cp.Tags[k] = v
	}
	return cp
}
