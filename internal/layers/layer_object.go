package layers

import (
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/world/entity"
)

// LayerObject тег видимости сущности, принадлежащей слою
type LayerObject struct {
	EntityID entity.ID
	Layer    int
	Hidden   bool
}

// Recompute пересчитывает тег для активного слоя. Возвращает true,
// если тег изменился.
func (o *LayerObject) Recompute(active int) bool {
	hidden := o.Layer != active
	if hidden == o.Hidden {
		return false
	}
	o.Hidden = hidden
	return true
}

// Tag возвращает реплицируемое значение тега
func (o *LayerObject) Tag() replication.LayerTag {
	return replication.LayerTag{EntityID: uint64(o.EntityID), Layer: o.Layer, Hidden: o.Hidden}
}
