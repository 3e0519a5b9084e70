package world

import (
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// checkLocked проверяет размещение отпечатка. ignore позволяет не считать
// занятыми слоты самой перемещаемой связи.
func (w *World) checkLocked(cells []vec.Vec2, c grid.Category, ignore NodeID, checkTerrain bool) error {
	for _, cell := range cells {
		if !w.InBounds(cell) {
			return placementErr(cell, c, ErrOutOfBounds)
		}
	}
	for _, cell := range cells {
		if id, ok := w.cells[cell][c]; ok && id != ignore {
			return placementErr(cell, c, ErrOccupied)
		}
	}
	if checkTerrain {
		for _, cell := range cells {
			if w.terrain.IsBlocked(cell) {
				return placementErr(cell, c, ErrTerrainBlocked)
			}
		}
	}
	return nil
}

// indexLocked регистрирует связь во всех ячейках отпечатка и в обратном индексе
func (w *World) indexLocked(link *NodeLink) {
	for _, cell := range link.footprint {
		slots, ok := w.cells[cell]
		if !ok {
			slots = make(map[grid.Category]NodeID, 1)
			w.cells[cell] = slots
		}
		slots[link.Category] = link.ID
	}
	w.links[link.ID] = link
	w.byEntity[link.Entity] = link.ID

	logging.LogPlacement(w.layer, link.ItemID, link.Anchor.X, link.Anchor.Y, link.Category.String())
}

// unindexLocked убирает связь из всех индексов. Запись ячейки удаляется,
// только когда освобождается её последний слот.
func (w *World) unindexLocked(link *NodeLink) {
	for _, cell := range link.footprint {
		slots, ok := w.cells[cell]
		if !ok {
			continue
		}
		if slots[link.Category] == link.ID {
			delete(slots, link.Category)
		}
		if len(slots) == 0 {
			delete(w.cells, cell)
		}
	}
	delete(w.byEntity, link.Entity)
	delete(w.links, link.ID)
}

// Validate сверяет индекс ячеек, арену и обратный индекс.
// Расхождения пишутся в лог как предупреждения; возвращается их количество.
func (w *World) Validate() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	problems := 0
	warn := func(format string, args ...interface{}) {
		problems++
		logging.Warn("world %s (слой %d): "+format, append([]interface{}{w.data.ID, w.layer}, args...)...)
	}

	for cell, slots := range w.cells {
		if len(slots) == 0 {
			warn("пустая запись ячейки %s", cell)
		}
		for c, id := range slots {
			link, ok := w.links[id]
			switch {
			case !ok:
				warn("ячейка %s [%s] ссылается на отсутствующую связь %d", cell, c, id)
			case link.Category != c:
				warn("ячейка %s [%s]: связь %d имеет категорию %s", cell, c, id, link.Category)
			case !link.Covers(cell):
				warn("ячейка %s [%s]: связь %d не покрывает ячейку", cell, c, id)
			}
		}
	}

	for id, link := range w.links {
		for _, cell := range link.footprint {
			if w.cells[cell][link.Category] != id {
				warn("связь %d (%s) недостижима из ячейки %s", id, link.ItemID, cell)
			}
		}
		if w.byEntity[link.Entity] != id {
			warn("связь %d (%s) отсутствует в обратном индексе", id, link.ItemID)
		}
	}

	for eid, id := range w.byEntity {
		if _, ok := w.links[id]; !ok {
			warn("сущность %d ссылается на отсутствующую связь %d", eid, id)
		}
	}

	return problems
}
