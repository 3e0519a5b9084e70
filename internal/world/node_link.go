package world

import (
	"github.com/annel0/meadow-world/internal/persist"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/entity"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// NodeID дескриптор связи в арене мира
type NodeID uint64

// NodeLink связь размещённого обитателя сетки с его сущностью и данными
// сохранения. Позиция и поворот сущности здесь не дублируются: их читают
// через World.Transform.
//
// Поля размещения не меняются после создания; перемещение создаёт новую связь.
type NodeLink struct {
	ID            NodeID
	ItemID        string
	PrefabPath    string
	Anchor        vec.Vec2
	Rotation      grid.Rotation
	Category      grid.Category
	Size          vec.Vec2 // Размер отпечатка после поворота
	PlacementType grid.PlacementType
	Entity        entity.ID
	Item          *persist.Item // Непрозрачные данные сохранения

	caps      Capabilities
	footprint []vec.Vec2
}

// Footprint возвращает копию списка занятых ячеек
func (l *NodeLink) Footprint() []vec.Vec2 {
	out := make([]vec.Vec2, len(l.footprint))
	copy(out, l.footprint)
	return out
}

// Covers сообщает, входит ли ячейка в отпечаток связи
func (l *NodeLink) Covers(cell vec.Vec2) bool {
	for _, c := range l.footprint {
		if c == cell {
			return true
		}
	}
	return false
}

// Capabilities возвращает возможности обитателя, найденные при появлении
func (l *NodeLink) Capabilities() Capabilities {
	return l.caps
}

// Occupant возвращает поведение обитателя (может быть nil)
func (l *NodeLink) Occupant() Occupant {
	return l.caps.Occupant
}

// Dropped сообщает, что предмет выброшен, а не поставлен
func (l *NodeLink) Dropped() bool {
	return l.PlacementType == grid.Dropped
}
