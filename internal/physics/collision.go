package physics

import (
	"github.com/annel0/meadow-world/internal/vec"
)

// Hit результат попадания луча в коллайдер
type Hit struct {
	Position vec.Vec3 // Точка попадания
	Distance float64  // Расстояние от начала луча
}

// Raycaster отвечает на вертикальные лучи вниз против слоя "terrain".
// Реальная геометрия рельефа живёт во внешнем движке; HeightField является
// его серверной заменой.
type Raycaster interface {
	// RaycastDown бросает луч из origin вниз на расстояние maxDistance
	RaycastDown(origin vec.Vec3, maxDistance float64) (Hit, bool)
}

// BoxCollider прямоугольный участок рельефа с плоской верхней гранью
type BoxCollider struct {
	MinX, MinY float64 // Нижний левый угол (локальные координаты мира)
	MaxX, MaxY float64 // Верхний правый угол
	Top        float64 // Высота верхней грани
}

// Contains проверяет, что точка (x,y) лежит внутри прямоугольника (границы включены)
func (bc BoxCollider) Contains(x, y float64) bool {
	return x >= bc.MinX && x <= bc.MaxX && y >= bc.MinY && y <= bc.MaxY
}

// HeightField набор коллайдеров рельефа одного мира, сдвинутый на origin
type HeightField struct {
	origin  vec.Vec3
	patches []BoxCollider
}

// NewHeightField создаёт поле высот из участков в локальных координатах мира
func NewHeightField(origin vec.Vec3, patches []BoxCollider) *HeightField {
	cp := make([]BoxCollider, len(patches))
	copy(cp, patches)
	return &HeightField{origin: origin, patches: cp}
}

// Patches возвращает количество участков рельефа
func (hf *HeightField) Patches() int {
	return len(hf.patches)
}

// RaycastDown возвращает ближайшую сверху грань под точкой origin
func (hf *HeightField) RaycastDown(origin vec.Vec3, maxDistance float64) (Hit, bool) {
	localX := origin.X - hf.origin.X
	localY := origin.Y - hf.origin.Y

	var (
		best  Hit
		found bool
	)
	for _, patch := range hf.patches {
		if !patch.Contains(localX, localY) {
			continue
		}

		top := hf.origin.Z + patch.Top
		dist := origin.Z - top
		if dist < 0 || dist > maxDistance {
			continue
		}
		if !found || dist < best.Distance {
			best = Hit{Position: vec.Vec3{X: origin.X, Y: origin.Y, Z: top}, Distance: dist}
			found = true
		}
	}

	return best, found
}
