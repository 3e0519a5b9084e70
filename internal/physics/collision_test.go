package physics

import (
	"testing"

	"github.com/annel0/meadow-world/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeightFieldRaycastDown(t *testing.T) {
	origin := vec.Vec3{X: 0, Y: 0, Z: 10000}
	hf := NewHeightField(origin, []BoxCollider{
		{MinX: 0, MinY: 0, MaxX: 320, MaxY: 320, Top: 0},
		{MinX: 64, MinY: 64, MaxX: 96, MaxY: 96, Top: 16},
	})

	hit, ok := hf.RaycastDown(vec.Vec3{X: 10, Y: 10, Z: 10500}, 1000)
	require.True(t, ok)
	assert.Equal(t, 10000.0, hit.Position.Z)
	assert.Equal(t, 500.0, hit.Distance)

	// Приподнятый участок ближе к лучу
	hit, ok = hf.RaycastDown(vec.Vec3{X: 70, Y: 70, Z: 10500}, 1000)
	require.True(t, ok)
	assert.Equal(t, 10016.0, hit.Position.Z)

	// Вне рельефа
	_, ok = hf.RaycastDown(vec.Vec3{X: 400, Y: 10, Z: 10500}, 1000)
	assert.False(t, ok)

	// Слишком короткий луч
	_, ok = hf.RaycastDown(vec.Vec3{X: 10, Y: 10, Z: 10500}, 100)
	assert.False(t, ok)
}
