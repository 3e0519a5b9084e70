package grid

import (
	"encoding/json"
	"testing"

	"github.com/annel0/meadow-world/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFootprintCountAndAnchor(t *testing.T) {
	anchor := vec.Vec2{X: 10, Y: 10}
	for _, rot := range []Rotation{North, East, South, West} {
		for w := 1; w <= 4; w++ {
			for h := 1; h <= 4; h++ {
				cells := Footprint(w, h, rot, anchor)
				assert.Len(t, cells, w*h, "rot=%s %dx%d", rot, w, h)

				seen := make(map[vec.Vec2]bool, len(cells))
				for _, c := range cells {
					assert.False(t, seen[c], "повтор ячейки %v при rot=%s %dx%d", c, rot, w, h)
					seen[c] = true
				}
				assert.True(t, seen[anchor], "якорь отсутствует при rot=%s %dx%d", rot, w, h)
			}
		}
	}
}

func TestFootprintEastSwapsAxes(t *testing.T) {
	cells := Footprint(2, 1, East, vec.Vec2{X: 5, Y: 5})
	assert.ElementsMatch(t, []vec.Vec2{{X: 5, Y: 5}, {X: 5, Y: 6}}, cells)

	cells = Footprint(2, 1, North, vec.Vec2{X: 5, Y: 5})
	assert.ElementsMatch(t, []vec.Vec2{{X: 5, Y: 5}, {X: 6, Y: 5}}, cells)

	cells = Footprint(2, 1, South, vec.Vec2{X: 5, Y: 5})
	assert.ElementsMatch(t, []vec.Vec2{{X: 5, Y: 5}, {X: 4, Y: 5}}, cells)

	cells = Footprint(2, 1, West, vec.Vec2{X: 5, Y: 5})
	assert.ElementsMatch(t, []vec.Vec2{{X: 5, Y: 5}, {X: 5, Y: 4}}, cells)
}

func TestFootprintSize(t *testing.T) {
	assert.Equal(t, vec.Vec2{X: 3, Y: 2}, FootprintSize(3, 2, North))
	assert.Equal(t, vec.Vec2{X: 2, Y: 3}, FootprintSize(3, 2, West))
	assert.Equal(t, vec.Vec2{X: 1, Y: 1}, FootprintSize(0, 0, South))
}

func TestToCellAndBack(t *testing.T) {
	origin := vec.Vec3{X: 100, Y: -64, Z: 20000}

	cell := vec.Vec2{X: 3, Y: 4}
	pos := ToWorld(origin, cell, 0)
	assert.Equal(t, vec.Vec3{X: 100 + 3*32 + 16, Y: -64 + 4*32 + 16, Z: 20000}, pos)
	assert.Equal(t, cell, ToCell(origin, pos))

	raised := ToWorld(origin, cell, 12.5)
	assert.Equal(t, 20012.5, raised.Z)

	// Позиции левее начала мира дают отрицательные ячейки
	assert.Equal(t, vec.Vec2{X: -1, Y: 0}, ToCell(origin, vec.Vec3{X: 99, Y: -64}))
}

func TestCellCornersInset(t *testing.T) {
	corners := CellCorners(vec.Vec3{}, vec.Vec2{X: 1, Y: 0}, 4)
	assert.Equal(t, vec.Vec3{X: 36, Y: 4}, corners[0])
	assert.Equal(t, vec.Vec3{X: 60, Y: 28}, corners[3])
}

func TestCategoryMask(t *testing.T) {
	m := MaskOf(Floor, Wall)
	assert.True(t, m.Has(Floor))
	assert.True(t, m.Has(Wall))
	assert.False(t, m.Has(OnTop))
	assert.Equal(t, []Category{Wall, Floor}, m.Categories())
}

func TestRotationJSON(t *testing.T) {
	data, err := json.Marshal(struct{ R Rotation }{R: East})
	require.NoError(t, err)
	assert.JSONEq(t, `{"R":"East"}`, string(data))

	var decoded struct{ R Rotation }
	require.NoError(t, json.Unmarshal([]byte(`{"R":"west"}`), &decoded))
	assert.Equal(t, West, decoded.R)

	assert.Error(t, json.Unmarshal([]byte(`{"R":"Up"}`), &decoded))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("floordecal")
	require.NoError(t, err)
	assert.Equal(t, FloorDecal, c)

	_, err = ParseCategory("roof")
	assert.Error(t, err)
}
