package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/persist"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// placement внутренний запрос на размещение связи
type placement struct {
	item      *catalog.ItemData
	anchor    vec.Vec2
	rotation  grid.Rotation
	category  grid.Category
	kind      grid.PlacementType
	prefab    string
	payload   *persist.Item
	checkMask bool
	terrain   bool
	ignore    NodeID
}

func (p placement) footprint() []vec.Vec2 {
	if p.kind == grid.Dropped {
		return []vec.Vec2{p.anchor}
	}
	width, height := p.item.Size()
	return grid.Footprint(width, height, p.rotation, p.anchor)
}

func (p placement) size() vec.Vec2 {
	if p.kind == grid.Dropped {
		return vec.Vec2{X: 1, Y: 1}
	}
	width, height := p.item.Size()
	return grid.FootprintSize(width, height, p.rotation)
}

func (w *World) requireAuthority() error {
	if !w.svc.Authority.IsAuthoritative() {
		return ErrNotAuthoritative
	}
	return nil
}

func (w *World) lookupItem(itemID string) (*catalog.ItemData, error) {
	item, err := w.svc.Catalog.Item(itemID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%q: %w", itemID, ErrUnknownItem)
	}
	return item, err
}

// CheckPlacement возвращает причину, по которой предмет нельзя поставить
func (w *World) CheckPlacement(item *catalog.ItemData, anchor vec.Vec2, rotation grid.Rotation, c grid.Category) error {
	if item == nil {
		return ErrUnknownItem
	}
	if !rotation.Valid() {
		return placementErr(anchor, c, ErrInvalidRotation)
	}
	if !c.Valid() || !item.Allows(c) {
		return placementErr(anchor, c, ErrCategoryNotAllowed)
	}

	p := placement{item: item, anchor: anchor, rotation: rotation, category: c}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.checkLocked(p.footprint(), c, 0, true)
}

// CanPlace сообщает, можно ли поставить предмет
func (w *World) CanPlace(item *catalog.ItemData, anchor vec.Vec2, rotation grid.Rotation, c grid.Category) bool {
	return w.CheckPlacement(item, anchor, rotation, c) == nil
}

// SpawnPlaced ставит предмет инструментом размещения
func (w *World) SpawnPlaced(ctx context.Context, itemID string, anchor vec.Vec2, rotation grid.Rotation, c grid.Category) (*NodeLink, error) {
	if err := w.requireAuthority(); err != nil {
		return nil, err
	}
	item, err := w.lookupItem(itemID)
	if err != nil {
		return nil, err
	}
	if item.PlaceScene == "" {
		return nil, fmt.Errorf("%s: %w", itemID, ErrMissingScene)
	}

	return w.spawn(ctx, placement{
		item:      item,
		anchor:    anchor,
		rotation:  rotation,
		category:  c,
		kind:      grid.Placed,
		prefab:    item.PlaceScene,
		checkMask: true,
		terrain:   true,
	})
}

// SpawnDropped выбрасывает предмет на землю. Выброшенный предмет всегда
// занимает одну ячейку в категории OnTop независимо от размеров в каталоге.
func (w *World) SpawnDropped(ctx context.Context, itemID string, anchor vec.Vec2, rotation grid.Rotation) (*NodeLink, error) {
	if err := w.requireAuthority(); err != nil {
		return nil, err
	}
	item, err := w.lookupItem(itemID)
	if err != nil {
		return nil, err
	}

	return w.spawn(ctx, placement{
		item:     item,
		anchor:   anchor,
		rotation: rotation,
		category: grid.OnTop,
		kind:     grid.Dropped,
		prefab:   item.DropScenePath(),
		terrain:  true,
	})
}

func (w *World) spawn(ctx context.Context, p placement) (*NodeLink, error) {
	// Неизвестный поворот не сериализуется и сломал бы каждое сохранение
	if !p.rotation.Valid() {
		return nil, placementErr(p.anchor, p.category, ErrInvalidRotation)
	}
	if p.checkMask && (!p.category.Valid() || !p.item.Allows(p.category)) {
		return nil, placementErr(p.anchor, p.category, ErrCategoryNotAllowed)
	}

	w.mu.Lock()
	if err := w.checkLocked(p.footprint(), p.category, 0, p.terrain); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	link, err := w.placeLocked(p)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	w.afterAdd(ctx, link, false)
	return link, nil
}

// placeLocked создаёт сущность и связь и регистрирует её в индексах.
// Проверка размещения уже выполнена вызывающим.
func (w *World) placeLocked(p placement) (*NodeLink, error) {
	if p.prefab == "" {
		return nil, fmt.Errorf("%s: %w", p.item.ID, ErrMissingScene)
	}

	pos := grid.ToWorld(w.origin, p.anchor, w.terrain.HeightAt(p.anchor))
	e, err := w.svc.Entities.Instantiate(p.prefab, pos, p.rotation.Yaw())
	if err != nil {
		return nil, fmt.Errorf("клонирование сцены %s: %w", p.prefab, err)
	}

	payload := p.payload
	if payload == nil {
		payload = persist.NewItem()
	}

	w.nextID++
	link := &NodeLink{
		ID:            w.nextID,
		ItemID:        p.item.ID,
		PrefabPath:    p.prefab,
		Anchor:        p.anchor,
		Rotation:      p.rotation,
		Category:      p.category,
		Size:          p.size(),
		PlacementType: p.kind,
		Entity:        e.ID,
		Item:          payload,
		caps:          ResolveCapabilities(w.svc.Behaviors.Resolve(p.item)),
		footprint:     p.footprint(),
	}
	w.indexLocked(link)
	return link, nil
}

// afterAdd выполняет побочные эффекты появления вне блокировки мира
func (w *World) afterAdd(ctx context.Context, link *NodeLink, restore bool) {
	if restore && link.caps.Restorer != nil {
		if err := link.caps.Restorer.RestoreState(link.Item); err != nil {
			logging.Warn("world %s: восстановление %s (%d): %v", w.data.ID, link.ItemID, link.ID, err)
		}
	}
	if w.svc.LayerObjects != nil {
		w.svc.LayerObjects.Register(link.Entity, w.layer)
	}
	if link.caps.Added != nil {
		link.caps.Added.OnAdded(ctx, w, link)
	}

	pos, yaw, err := w.Transform(link)
	if err == nil {
		err = w.svc.Replicator.ReplicateSpawn(ctx, replication.EntityState{
			EntityID: uint64(link.Entity),
			Prefab:   link.PrefabPath,
			Layer:    w.layer,
			ItemID:   link.ItemID,
			Position: pos,
			Yaw:      yaw,
		})
	}
	if err != nil {
		logging.Warn("world %s: репликация появления %s: %v", w.data.ID, link.ItemID, err)
	}

	w.fireAdded(ctx, link)
}

// Remove удаляет обитателя из мира и уничтожает его сущность
func (w *World) Remove(ctx context.Context, link *NodeLink) error {
	if err := w.requireAuthority(); err != nil {
		return err
	}
	if link == nil {
		return ErrNotPlaced
	}

	w.mu.Lock()
	if current, ok := w.links[link.ID]; !ok || current != link {
		w.mu.Unlock()
		return fmt.Errorf("связь %d: %w", link.ID, ErrNotPlaced)
	}
	w.unindexLocked(link)
	w.mu.Unlock()

	w.afterRemove(ctx, link)
	return nil
}

func (w *World) afterRemove(ctx context.Context, link *NodeLink) {
	w.svc.Entities.Destroy(link.Entity)
	if w.svc.LayerObjects != nil {
		w.svc.LayerObjects.Unregister(link.Entity)
	}
	if link.caps.Removed != nil {
		link.caps.Removed.OnRemoved(ctx, w, link)
	}
	if err := w.svc.Replicator.ReplicateDestroy(ctx, uint64(link.Entity), w.layer); err != nil {
		logging.Warn("world %s: репликация удаления %s: %v", w.data.ID, link.ItemID, err)
	}

	w.fireRemoved(ctx, link)
}

// Move переносит обитателя на новую опорную ячейку и поворот. Перемещение
// выполняется как удаление и повторное размещение; данные сохранения
// переносятся. При отказе исходная связь остаётся на месте.
func (w *World) Move(ctx context.Context, link *NodeLink, anchor vec.Vec2, rotation grid.Rotation) (*NodeLink, error) {
	if err := w.requireAuthority(); err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotPlaced
	}
	if !rotation.Valid() {
		return nil, placementErr(anchor, link.Category, ErrInvalidRotation)
	}
	item, err := w.lookupItem(link.ItemID)
	if err != nil {
		return nil, err
	}

	if link.caps.Saver != nil {
		if err := link.caps.Saver.SaveState(link.Item); err != nil {
			return nil, fmt.Errorf("сохранение состояния %s: %w", link.ItemID, err)
		}
	}

	p := placement{
		item:     item,
		anchor:   anchor,
		rotation: rotation,
		category: link.Category,
		kind:     link.PlacementType,
		prefab:   link.PrefabPath,
		payload:  link.Item.Clone(),
		terrain:  true,
	}

	w.mu.Lock()
	if current, ok := w.links[link.ID]; !ok || current != link {
		w.mu.Unlock()
		return nil, fmt.Errorf("связь %d: %w", link.ID, ErrNotPlaced)
	}
	if err := w.checkLocked(p.footprint(), p.category, link.ID, true); err != nil {
		w.mu.Unlock()
		return nil, err
	}

	w.unindexLocked(link)
	moved, err := w.placeLocked(p)
	if err != nil {
		w.indexLocked(link)
		w.mu.Unlock()
		return nil, err
	}
	w.mu.Unlock()

	w.afterRemove(ctx, link)
	w.afterAdd(ctx, moved, true)
	return moved, nil
}

// Clear удаляет всех обитателей мира
func (w *World) Clear(ctx context.Context) {
	w.mu.Lock()
	links := w.sortedLinksLocked()
	for _, link := range links {
		w.unindexLocked(link)
	}
	w.mu.Unlock()

	for _, link := range links {
		w.afterRemove(ctx, link)
	}
}
