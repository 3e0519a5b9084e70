package world

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/annel0/meadow-world/internal/persist"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadEmptyWorld(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	require.NoError(t, f.world.Save(ctx))

	doc, err := f.store.Load(ctx, "slot1", "farm")
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
	assert.False(t, doc.LastSave.IsZero())

	fresh := f.newWorld(t, "farm", 0)
	require.NoError(t, fresh.Load(ctx))
	assert.Equal(t, 0, fresh.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	bench, err := f.world.SpawnPlaced(ctx, "bench", vec.Vec2{X: 5, Y: 5}, grid.East, grid.Floor)
	require.NoError(t, err)
	require.NoError(t, bench.Item.SetArbitraryData("color", "green"))
	require.NoError(t, bench.Item.SetArbitraryData("wear", map[string]float64{"seat": 0.25, "legs": 1e-3}))
	bench.Item.SetRaw("odd", json.RawMessage(`[1,2.50,"x"]`))

	_, err = f.world.SpawnPlaced(ctx, "hole", vec.Vec2{X: 3, Y: 4}, grid.North, grid.Floor)
	require.NoError(t, err)
	_, err = f.world.SpawnPlaced(ctx, "fence", vec.Vec2{X: 3, Y: 4}, grid.North, grid.Wall)
	require.NoError(t, err)
	_, err = f.world.SpawnPlaced(ctx, "rug", vec.Vec2{X: 2, Y: 8}, grid.South, grid.FloorDecal)
	require.NoError(t, err)
	_, err = f.world.SpawnDropped(ctx, "rock", vec.Vec2{X: 9, Y: 9}, grid.West)
	require.NoError(t, err)

	before := tuples(f.world)
	require.NoError(t, f.world.Save(ctx))

	fresh := f.newWorld(t, "farm", 0)
	require.NoError(t, fresh.Load(ctx))

	after := tuples(fresh)
	require.Len(t, after, len(before))
	for key, old := range before {
		restored, ok := after[key]
		require.True(t, ok, "нет %+v", key)
		assert.True(t, old.Item.Equal(restored.Item), "данные %s", key.ItemID)
		assert.Equal(t, old.PlacementType, restored.PlacementType)
		assert.Equal(t, old.PrefabPath, restored.PrefabPath)
		assert.ElementsMatch(t, old.Footprint(), restored.Footprint())
	}

	odd, ok := after[placedTuple{vec.Vec2{X: 5, Y: 5}, grid.East, grid.Floor, "bench"}].Item.Raw("odd")
	require.True(t, ok)
	assert.Equal(t, `[1,2.50,"x"]`, string(odd))
	assert.Equal(t, 0, fresh.Validate())
}

func TestLoadReplacesCurrentState(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	_, err := f.world.SpawnPlaced(ctx, "hole", vec.Vec2{X: 1, Y: 1}, grid.North, grid.Floor)
	require.NoError(t, err)
	require.NoError(t, f.world.Save(ctx))

	extra, err := f.world.SpawnPlaced(ctx, "fence", vec.Vec2{X: 2, Y: 2}, grid.North, grid.Wall)
	require.NoError(t, err)

	require.NoError(t, f.world.Load(ctx))
	assert.Equal(t, 1, f.world.Len())
	assert.False(t, f.world.HasCell(vec.Vec2{X: 2, Y: 2}))
	assert.False(t, f.entities.Exists(extra.Entity))
	assert.Equal(t, 1, f.entities.Count())
}

func TestEastBenchRecord(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	_, err := f.world.SpawnPlaced(ctx, "bench", vec.Vec2{X: 5, Y: 5}, grid.East, grid.Floor)
	require.NoError(t, err)
	require.NoError(t, f.world.Save(ctx))

	raw, err := os.ReadFile(f.store.Path("slot1", "farm"))
	require.NoError(t, err)

	var file struct {
		Items []map[string]json.RawMessage
	}
	require.NoError(t, json.Unmarshal(raw, &file))
	require.Len(t, file.Items, 1)
	assert.JSONEq(t, `{"x":5,"y":5}`, string(file.Items[0]["Position"]))
	assert.JSONEq(t, `"East"`, string(file.Items[0]["Rotation"]))
	assert.JSONEq(t, `"Placed"`, string(file.Items[0]["PlacementType"]))
	assert.JSONEq(t, `"bench"`, string(file.Items[0]["ItemId"]))

	fresh := f.newWorld(t, "farm", 0)
	require.NoError(t, fresh.Load(ctx))
	links := fresh.Links()
	require.Len(t, links, 1)
	assert.ElementsMatch(t, []vec.Vec2{{X: 5, Y: 5}, {X: 5, Y: 6}}, links[0].Footprint())
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	require.NoError(t, f.world.Load(ctx), "отсутствующее сохранение = пустой мир")
	assert.Equal(t, 0, f.world.Len())

	link, err := f.world.SpawnPlaced(ctx, "hole", vec.Vec2{X: 1, Y: 1}, grid.North, grid.Floor)
	require.NoError(t, err)
	require.NoError(t, f.world.Save(ctx))
	require.NoError(t, os.WriteFile(f.store.Path("slot1", "farm"), []byte(`{"Items": [`), 0644))

	err = f.world.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptSave)

	got, ok := f.world.GetOccupant(vec.Vec2{X: 1, Y: 1}, grid.Floor)
	require.True(t, ok, "повреждённое сохранение не трогает текущее состояние")
	assert.Same(t, link, got)
}

func TestRestoreSkipsBadRecords(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	doc := &storage.Document{Items: []storage.Record{
		{Position: vec.Vec2{X: 1, Y: 1}, Category: grid.Floor, PrefabPath: "scenes/hole.scene", ItemID: "hole", Item: persist.NewItem()},
		{Position: vec.Vec2{X: 1, Y: 1}, Category: grid.Floor, PrefabPath: "scenes/hole.scene", ItemID: "hole", Item: persist.NewItem()},
		{Position: vec.Vec2{X: 2, Y: 2}, ItemID: "vanished"},
		{Position: vec.Vec2{X: 3, Y: 3}, ItemID: "fence"},
		{Position: vec.Vec2{X: 4, Y: 4}, PlacementType: grid.Dropped, ItemID: "bench"},
	}}

	assert.Equal(t, 3, f.world.Restore(ctx, doc))

	fence, ok := f.world.GetOccupant(vec.Vec2{X: 3, Y: 3}, grid.Wall)
	require.True(t, ok, "категория без записи берётся из маски")
	assert.Equal(t, "scenes/fence.scene", fence.PrefabPath)

	dropped, ok := f.world.GetOccupant(vec.Vec2{X: 4, Y: 4}, grid.OnTop)
	require.True(t, ok)
	assert.Equal(t, "scenes/dropped_item.scene", dropped.PrefabPath)
	assert.Len(t, dropped.Footprint(), 1)
}

func TestSaveTraits(t *testing.T) {
	f := newFixture(t, "farm")
	ctx := context.Background()

	_, err := f.world.SpawnPlaced(ctx, "sign", vec.Vec2{X: 1, Y: 1}, grid.North, grid.OnTop)
	require.NoError(t, err)
	_, err = f.world.SpawnPlaced(ctx, "sign", vec.Vec2{X: 2, Y: 2}, grid.North, grid.OnTop)
	require.NoError(t, err)
	require.Len(t, f.signs, 2)

	f.signs[0].Text = "Grandpa's farm"
	f.signs[1].skip = true

	require.NoError(t, f.world.Save(ctx))
	assert.Equal(t, 1, f.signs[0].saved)
	assert.Equal(t, 0, f.signs[1].saved)

	fresh := f.newWorld(t, "farm", 0)
	require.NoError(t, fresh.Load(ctx))
	require.Equal(t, 1, fresh.Len())
	require.Len(t, f.signs, 3)

	restored := f.signs[2]
	assert.Equal(t, 1, restored.restored)
	assert.Equal(t, "Grandpa's farm", restored.Text)
	assert.Equal(t, 1, restored.added)
}

func TestSaveWithoutStore(t *testing.T) {
	f := newFixture(t, "farm")
	svc := f.svc
	svc.Store = nil

	w, err := New(Config{Data: f.world.Data()}, svc)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Save(context.Background()), ErrNoStore)
	assert.ErrorIs(t, w.Load(context.Background()), ErrNoStore)
}
