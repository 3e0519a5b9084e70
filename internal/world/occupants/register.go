// Package occupants содержит встроенные поведения обитателей сетки.
// Каталог выбирает поведение полем behavior у предмета.
package occupants

import (
	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/world"
)

// Ключи поведений в каталоге
const (
	CropKey      = "crop"
	ChestKey     = "chest"
	TreeKey      = "tree"
	TransientKey = "transient"
)

// DefaultCanopyItem предмет кроны, который дерево ставит над стволом
const DefaultCanopyItem = "tree_canopy"

// Register добавляет встроенные поведения в реестр
func Register(r *world.BehaviorRegistry) {
	r.Register(CropKey, func(item *catalog.ItemData) world.Occupant {
		return NewCrop(item.Name(), DefaultMaxStage)
	})
	r.Register(ChestKey, func(item *catalog.ItemData) world.Occupant {
		return NewChest(item.Name(), DefaultChestSlots)
	})
	r.Register(TreeKey, func(item *catalog.ItemData) world.Occupant {
		return &Tree{name: item.Name(), CanopyItem: DefaultCanopyItem}
	})
	r.Register(TransientKey, func(item *catalog.ItemData) world.Occupant {
		return &Transient{name: item.Name()}
	})
}
