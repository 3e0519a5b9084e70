// Package terrain кеширует пригодность ячеек для строительства.
//
// Проверка ячейки стоит четыре луча, поэтому результат запоминается навсегда:
// механизма инвалидации при изменении рельефа во время игры нет.
package terrain

import (
	"math"
	"sync"

	"github.com/annel0/meadow-world/internal/physics"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

const (
	// Margin отступ углов от границы ячейки
	Margin = 4.0
	// Tolerance допустимое расхождение высот попаданий
	Tolerance = 1.0
	// RayHeight высота начала луча над базой мира
	RayHeight = 1000.0
	// RayLength длина луча
	RayLength = 2000.0
)

// Stats счётчики кеша
type Stats struct {
	Resolved int // Проверенные ячейки
	Blocked  int // Из них заблокированные
	Heights  int // Ячейки с ненулевой высотой
}

// Cache ленивый кеш "можно ли строить" и "высота ячейки"
type Cache struct {
	mu      sync.Mutex
	origin  vec.Vec3
	ray     physics.Raycaster
	blocked map[vec.Vec2]bool
	height  map[vec.Vec2]float64
}

// NewCache создаёт кеш для мира с началом origin
func NewCache(origin vec.Vec3, ray physics.Raycaster) *Cache {
	return &Cache{
		origin:  origin,
		ray:     ray,
		blocked: make(map[vec.Vec2]bool),
		height:  make(map[vec.Vec2]float64),
	}
}

// IsBlocked сообщает, что ячейка непригодна для размещения
func (c *Cache) IsBlocked(cell vec.Vec2) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolveLocked(cell)
	return c.blocked[cell]
}

// HeightAt возвращает высоту ячейки относительно базы мира (0 = без поправки)
func (c *Cache) HeightAt(cell vec.Vec2) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resolveLocked(cell)
	return c.height[cell]
}

// Stats возвращает счётчики кеша
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Resolved: len(c.blocked), Heights: len(c.height)}
	for _, b := range c.blocked {
		if b {
			s.Blocked++
		}
	}
	return s
}

func (c *Cache) resolveLocked(cell vec.Vec2) {
	if _, ok := c.blocked[cell]; ok {
		return
	}

	height, ok := c.CheckTerrainAt(cell)
	c.blocked[cell] = !ok
	if ok && height != 0 {
		c.height[cell] = height
	}
}

// CheckTerrainAt бросает четыре луча из углов ячейки. Ячейка пригодна, если
// все лучи попали в рельеф и высоты совпадают в пределах Tolerance.
// Результат не кешируется; используйте IsBlocked/HeightAt.
func (c *Cache) CheckTerrainAt(cell vec.Vec2) (float64, bool) {
	if c.ray == nil {
		return 0, false
	}

	corners := grid.CellCorners(c.origin, cell, Margin)

	minZ, maxZ := math.Inf(1), math.Inf(-1)
	for _, corner := range corners {
		hit, ok := c.ray.RaycastDown(corner.WithZ(c.origin.Z+RayHeight), RayLength)
		if !ok {
			return 0, false
		}
		minZ = math.Min(minZ, hit.Position.Z)
		maxZ = math.Max(maxZ, hit.Position.Z)
	}

	if maxZ-minZ > Tolerance {
		return 0, false
	}

	return maxZ - c.origin.Z, true
}

// Len возвращает количество проверенных ячеек
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocked)
}
