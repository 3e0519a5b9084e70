package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/persist"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// Snapshot собирает документ сохранения без записи в хранилище.
// Обитатели с ShouldBeSaved() == false пропускаются; Saver заполняет
// данные сохранения перед записью.
func (w *World) Snapshot() (*storage.Document, error) {
	links := w.Links()

	doc := &storage.Document{
		LastSave: time.Now().UTC(),
		Items:    make([]storage.Record, 0, len(links)),
	}
	for _, link := range links {
		if !link.caps.ShouldBeSaved() {
			continue
		}
		if link.caps.Saver != nil {
			if err := link.caps.Saver.SaveState(link.Item); err != nil {
				return nil, fmt.Errorf("сохранение состояния %s (%d): %w", link.ItemID, link.ID, err)
			}
		}
		doc.Items = append(doc.Items, storage.Record{
			Position:      link.Anchor,
			Rotation:      link.Rotation,
			Category:      link.Category,
			PlacementType: link.PlacementType,
			PrefabPath:    link.PrefabPath,
			ItemID:        link.ItemID,
			Item:          link.Item,
		})
	}
	return doc, nil
}

// Save записывает состояние мира в хранилище профиля под id мира
func (w *World) Save(ctx context.Context) error {
	if err := w.requireAuthority(); err != nil {
		return err
	}
	if w.svc.Store == nil {
		return ErrNoStore
	}

	doc, err := w.Snapshot()
	if err != nil {
		return err
	}
	if err := w.svc.Store.Save(ctx, w.svc.Profile, w.data.ID, doc); err != nil {
		return fmt.Errorf("сохранение мира %s: %w", w.data.ID, err)
	}

	logging.Debug("world %s: сохранено %d обитателей (профиль %s)", w.data.ID, len(doc.Items), w.svc.Profile)
	w.publish(ctx, eventbus.TypeWorldSaved, eventbus.PriorityLow, SaveEvent{
		World:   w.data.ID,
		Layer:   w.layer,
		Profile: w.svc.Profile,
		Items:   len(doc.Items),
	})
	return nil
}

// Load заменяет состояние мира содержимым сохранения. Отсутствующее
// сохранение даёт пустой мир; повреждённое возвращает ErrCorruptSave,
// и текущее состояние не трогается.
func (w *World) Load(ctx context.Context) error {
	if err := w.requireAuthority(); err != nil {
		return err
	}
	if w.svc.Store == nil {
		return ErrNoStore
	}

	doc, err := w.svc.Store.Load(ctx, w.svc.Profile, w.data.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		doc = &storage.Document{}
	case errors.Is(err, storage.ErrCorrupt):
		return fmt.Errorf("мир %s: %w: %v", w.data.ID, ErrCorruptSave, err)
	case err != nil:
		return fmt.Errorf("загрузка мира %s: %w", w.data.ID, err)
	}

	w.Clear(ctx)
	loaded := w.Restore(ctx, doc)
	logging.Info("world %s: загружено %d из %d записей (слой %d)", w.data.ID, loaded, len(doc.Items), w.layer)
	return nil
}

// Restore размещает обитателей из документа. Рельеф не проверяется:
// сохранённое размещение уже было допустимым. Записи с неизвестным
// предметом или конфликтом слотов пропускаются с предупреждением.
func (w *World) Restore(ctx context.Context, doc *storage.Document) int {
	restored := make([]*NodeLink, 0, len(doc.Items))

	for i, rec := range doc.Items {
		p, err := w.recordPlacement(rec)
		if err != nil {
			logging.Warn("world %s: запись %d (%s) пропущена: %v", w.data.ID, i, rec.ItemID, err)
			continue
		}

		w.mu.Lock()
		err = w.checkLocked(p.footprint(), p.category, 0, false)
		var link *NodeLink
		if err == nil {
			link, err = w.placeLocked(p)
		}
		w.mu.Unlock()

		if err != nil {
			logging.Warn("world %s: запись %d (%s) пропущена: %v", w.data.ID, i, rec.ItemID, err)
			continue
		}
		restored = append(restored, link)
	}

	for _, link := range restored {
		w.afterAdd(ctx, link, true)
	}
	return len(restored)
}

func (w *World) recordPlacement(rec storage.Record) (placement, error) {
	item, err := w.lookupItem(rec.ItemID)
	if err != nil {
		return placement{}, err
	}

	c := rec.Category
	if c == 0 {
		// Старые записи без категории: выброшенные лежат сверху,
		// поставленные занимают первую разрешённую категорию
		c = grid.OnTop
		if rec.PlacementType == grid.Placed {
			if allowed := item.Mask().Categories(); len(allowed) > 0 {
				c = allowed[0]
			}
		}
	}

	prefab := rec.PrefabPath
	if prefab == "" {
		prefab = item.PlaceScene
		if rec.PlacementType == grid.Dropped {
			prefab = item.DropScenePath()
		}
	}

	payload := rec.Item
	if payload == nil {
		payload = persist.NewItem()
	}

	return placement{
		item:     item,
		anchor:   rec.Position,
		rotation: rec.Rotation,
		category: c,
		kind:     rec.PlacementType,
		prefab:   prefab,
		payload:  payload,
	}, nil
}
