// Package grid содержит чистую математику сетки: перевод мировых координат
// в ячейки и обратно, а также перечисление ячеек, занятых предметом.
package grid

import (
	"math"

	"github.com/annel0/meadow-world/internal/vec"
)

// CellSize линейный размер ячейки в мировых единицах
const CellSize = 32

// ToCell переводит мировую позицию в ячейку относительно начала мира
func ToCell(origin, pos vec.Vec3) vec.Vec2 {
	local := pos.Sub(origin)
	return vec.Vec2{
		X: int(math.Floor(local.X / CellSize)),
		Y: int(math.Floor(local.Y / CellSize)),
	}
}

// ToWorld возвращает центр ячейки в мировых координатах.
// Ненулевая height заменяет базовую высоту мира (origin.Z + height).
func ToWorld(origin vec.Vec3, cell vec.Vec2, height float64) vec.Vec3 {
	pos := vec.Vec3{
		X: origin.X + float64(cell.X)*CellSize + CellSize/2,
		Y: origin.Y + float64(cell.Y)*CellSize + CellSize/2,
		Z: origin.Z,
	}
	if height != 0 {
		pos.Z = origin.Z + height
	}
	return pos
}

// CellCorners возвращает четыре угла ячейки, сдвинутые внутрь на margin
func CellCorners(origin vec.Vec3, cell vec.Vec2, margin float64) [4]vec.Vec3 {
	minX := origin.X + float64(cell.X)*CellSize + margin
	minY := origin.Y + float64(cell.Y)*CellSize + margin
	maxX := origin.X + float64(cell.X+1)*CellSize - margin
	maxY := origin.Y + float64(cell.Y+1)*CellSize - margin

	return [4]vec.Vec3{
		{X: minX, Y: minY, Z: origin.Z},
		{X: maxX, Y: minY, Z: origin.Z},
		{X: minX, Y: maxY, Z: origin.Z},
		{X: maxX, Y: maxY, Z: origin.Z},
	}
}

// Footprint перечисляет ячейки предмета width×height с якорем anchor.
// North/South сохраняют оси, East/West меняют их местами,
// South и West дополнительно отражают одну ось.
func Footprint(width, height int, rotation Rotation, anchor vec.Vec2) []vec.Vec2 {
	if width <= 1 && height <= 1 {
		return []vec.Vec2{anchor}
	}

	cells := make([]vec.Vec2, 0, width*height)
	for i := 0; i < width; i++ {
		for j := 0; j < height; j++ {
			var offset vec.Vec2
			switch rotation {
			case East:
				offset = vec.Vec2{X: j, Y: i}
			case South:
				offset = vec.Vec2{X: -i, Y: j}
			case West:
				offset = vec.Vec2{X: j, Y: -i}
			default:
				offset = vec.Vec2{X: i, Y: j}
			}
			cells = append(cells, anchor.Add(offset))
		}
	}
	return cells
}

// FootprintSize возвращает размеры отпечатка после поворота
func FootprintSize(width, height int, rotation Rotation) vec.Vec2 {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if rotation == East || rotation == West {
		return vec.Vec2{X: height, Y: width}
	}
	return vec.Vec2{X: width, Y: height}
}
