// Package world реализует экземпляр мира: сетку занятости по категориям,
// кеш пригодности рельефа, появление и удаление обитателей, сохранение
// и загрузку всего состояния сетки.
package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/physics"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/entity"
	"github.com/annel0/meadow-world/internal/world/grid"
	"github.com/annel0/meadow-world/internal/world/terrain"
)

// Config параметры создания экземпляра мира
type Config struct {
	Data    *catalog.WorldData
	Layer   int
	Origin  vec.Vec3          // Начало мира с учётом смещения слоя
	Root    entity.ID         // Корневая сущность (клон корневой сцены)
	Terrain physics.Raycaster // nil = поле высот из каталога
}

// World экземпляр мира на одном слое
type World struct {
	mu sync.RWMutex

	data    *catalog.WorldData
	layer   int
	origin  vec.Vec3
	root    entity.ID
	visible bool
	svc     Services
	terrain *terrain.Cache

	cells    map[vec.Vec2]map[grid.Category]NodeID // Индекс занятости
	links    map[NodeID]*NodeLink                  // Арена связей
	byEntity map[entity.ID]NodeID                  // Обратный индекс
	nextID   NodeID

	handlersMu sync.RWMutex
	onAdded    []func(*NodeLink)
	onRemoved  []func(*NodeLink)
}

// New создаёт пустой экземпляр мира
func New(cfg Config, svc Services) (*World, error) {
	if cfg.Data == nil {
		return nil, fmt.Errorf("world: не задано описание мира")
	}
	if cfg.Data.Width <= 0 || cfg.Data.Height <= 0 {
		return nil, fmt.Errorf("world %s: некорректный размер %dx%d", cfg.Data.ID, cfg.Data.Width, cfg.Data.Height)
	}

	ray := cfg.Terrain
	if ray == nil {
		ray = physics.NewHeightField(cfg.Origin, cfg.Data.Colliders())
	}

	return &World{
		data:     cfg.Data,
		layer:    cfg.Layer,
		origin:   cfg.Origin,
		root:     cfg.Root,
		visible:  true,
		svc:      svc.withDefaults(),
		terrain:  terrain.NewCache(cfg.Origin, ray),
		cells:    make(map[vec.Vec2]map[grid.Category]NodeID),
		links:    make(map[NodeID]*NodeLink),
		byEntity: make(map[entity.ID]NodeID),
	}, nil
}

// ID возвращает id мира в каталоге
func (w *World) ID() string { return w.data.ID }

// Data возвращает описание мира
func (w *World) Data() *catalog.WorldData { return w.data }

// Layer возвращает номер слоя
func (w *World) Layer() int { return w.layer }

// Origin возвращает начало мира в мировых координатах
func (w *World) Origin() vec.Vec3 { return w.origin }

// Root возвращает корневую сущность
func (w *World) Root() entity.ID { return w.root }

// Width и Height размеры сетки в ячейках
func (w *World) Width() int  { return w.data.Width }
func (w *World) Height() int { return w.data.Height }

// Terrain возвращает кеш пригодности рельефа
func (w *World) Terrain() *terrain.Cache { return w.terrain }

// Services возвращает контекст зависимостей мира
func (w *World) Services() Services { return w.svc }

// Visible сообщает, виден ли мир локальному наблюдателю
func (w *World) Visible() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.visible
}

// SetVisible выставляет тег видимости мира
func (w *World) SetVisible(v bool) {
	w.mu.Lock()
	w.visible = v
	w.mu.Unlock()
}

// ToCell переводит мировую позицию в ячейку этого мира
func (w *World) ToCell(pos vec.Vec3) vec.Vec2 {
	return grid.ToCell(w.origin, pos)
}

// ToWorld возвращает центр ячейки. С applyHeight высота берётся из кеша
// рельефа вместо базовой высоты мира.
func (w *World) ToWorld(cell vec.Vec2, applyHeight bool) vec.Vec3 {
	var h float64
	if applyHeight {
		h = w.terrain.HeightAt(cell)
	}
	return grid.ToWorld(w.origin, cell, h)
}

// InBounds проверяет ячейку на попадание в сетку
func (w *World) InBounds(cell vec.Vec2) bool {
	return cell.In(w.data.Width, w.data.Height)
}

// Transform читает живую позицию и поворот обитателя из его сущности
func (w *World) Transform(link *NodeLink) (vec.Vec3, float64, error) {
	e, err := w.svc.Entities.Get(link.Entity)
	if err != nil {
		return vec.Vec3{}, 0, err
	}
	return e.Position, e.Yaw, nil
}

// GetOccupants возвращает всех обитателей ячейки во всех категориях.
// Многоклеточные предметы индексируются каждой ячейкой отпечатка, поэтому
// они находятся по любой своей ячейке без обхода всех связей.
func (w *World) GetOccupants(cell vec.Vec2) []*NodeLink {
	w.mu.RLock()
	defer w.mu.RUnlock()

	slots, ok := w.cells[cell]
	if !ok {
		return nil
	}

	out := make([]*NodeLink, 0, len(slots))
	for _, c := range grid.AllCategories {
		if id, ok := slots[c]; ok {
			if link := w.links[id]; link != nil {
				out = append(out, link)
			}
		}
	}
	return out
}

// GetOccupant возвращает обитателя ячейки в категории
func (w *World) GetOccupant(cell vec.Vec2, c grid.Category) (*NodeLink, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	id, ok := w.cells[cell][c]
	if !ok {
		return nil, false
	}
	link, ok := w.links[id]
	return link, ok
}

// HasCell сообщает, есть ли в индексе запись для ячейки
func (w *World) HasCell(cell vec.Vec2) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.cells[cell]
	return ok
}

// Link возвращает связь по дескриптору
func (w *World) Link(id NodeID) (*NodeLink, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	link, ok := w.links[id]
	return link, ok
}

// LinkByEntity ищет связь по сущности
func (w *World) LinkByEntity(id entity.ID) (*NodeLink, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	nid, ok := w.byEntity[id]
	if !ok {
		return nil, false
	}
	link, ok := w.links[nid]
	return link, ok
}

// Links возвращает все связи в порядке появления
func (w *World) Links() []*NodeLink {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sortedLinksLocked()
}

// ItemsOfType возвращает связи с указанным предметом
func (w *World) ItemsOfType(itemID string) []*NodeLink {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []*NodeLink
	for _, link := range w.sortedLinksLocked() {
		if link.ItemID == itemID {
			out = append(out, link)
		}
	}
	return out
}

// Len возвращает количество обитателей
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.links)
}

func (w *World) sortedLinksLocked() []*NodeLink {
	out := make([]*NodeLink, 0, len(w.links))
	for _, link := range w.links {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
