package occupants

import (
	"context"

	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/world"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// Tree ствол дерева в категории Wall. При появлении ставит крону в OnTop
// той же ячейки, при удалении убирает её. Крона не сохраняется и
// восстанавливается деревом после загрузки.
type Tree struct {
	name       string
	CanopyItem string
}

func (t *Tree) Name() string { return t.name }

func (t *Tree) OnAdded(ctx context.Context, w *world.World, link *world.NodeLink) {
	if t.CanopyItem == "" {
		return
	}
	if _, busy := w.GetOccupant(link.Anchor, grid.OnTop); busy {
		return
	}
	if _, err := w.SpawnPlaced(ctx, t.CanopyItem, link.Anchor, link.Rotation, grid.OnTop); err != nil {
		logging.Debug("дерево %s в %s: крона не поставлена: %v", t.name, link.Anchor, err)
	}
}

func (t *Tree) OnRemoved(ctx context.Context, w *world.World, link *world.NodeLink) {
	canopy, ok := w.GetOccupant(link.Anchor, grid.OnTop)
	if !ok || canopy.ItemID != t.CanopyItem {
		return
	}
	if err := w.Remove(ctx, canopy); err != nil {
		logging.Debug("дерево %s в %s: крона не удалена: %v", t.name, link.Anchor, err)
	}
}
