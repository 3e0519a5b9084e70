package world

import (
	"context"
	"sync"
	"testing"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/persist"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/entity"
	"github.com/annel0/meadow-world/internal/world/grid"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat := catalog.New()
	items := []*catalog.ItemData{
		catalog.NewItem("hole", 1, 1, "scenes/hole.scene", grid.Floor),
		catalog.NewItem("fence", 1, 1, "scenes/fence.scene", grid.Wall),
		catalog.NewItem("bench", 2, 1, "scenes/bench.scene", grid.Floor, grid.OnTop),
		catalog.NewItem("rug", 3, 2, "scenes/rug.scene", grid.FloorDecal),
		catalog.NewItem("rock", 1, 1, "", grid.OnTop),
	}
	sign := catalog.NewItem("sign", 1, 1, "scenes/sign.scene", grid.OnTop)
	sign.Behavior = "sign"
	items = append(items, sign)

	for _, item := range items {
		require.NoError(t, cat.RegisterItem(item))
	}

	require.NoError(t, cat.RegisterWorld(&catalog.WorldData{ID: "farm", Width: 10, Height: 10, RootScene: "scenes/farm.scene"}))
	require.NoError(t, cat.RegisterWorld(&catalog.WorldData{
		ID: "ridge", Width: 10, Height: 10, RootScene: "scenes/ridge.scene",
		Terrain: []catalog.TerrainPatch{
			{X: 0, Y: 0, Width: 5, Height: 10, Top: 0},
			{X: 5, Y: 0, Width: 2, Height: 10, Top: 16},
		},
	}))
	return cat
}

// testSign обитатель со всеми возможностями
type testSign struct {
	mu       sync.Mutex
	Text     string
	saved    int
	restored int
	added    int
	removed  int
	skip     bool
}

func (s *testSign) Name() string { return "sign" }

func (s *testSign) SaveState(item *persist.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	return item.SetArbitraryData("text", s.Text)
}

func (s *testSign) RestoreState(item *persist.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored++
	text, err := persist.GetArbitraryData[string](item, "text")
	if err != nil {
		return err
	}
	s.Text = text
	return nil
}

func (s *testSign) ShouldBeSaved() bool { return !s.skip }

func (s *testSign) OnAdded(ctx context.Context, w *World, link *NodeLink) {
	s.mu.Lock()
	s.added++
	s.mu.Unlock()
}

func (s *testSign) OnRemoved(ctx context.Context, w *World, link *NodeLink) {
	s.mu.Lock()
	s.removed++
	s.mu.Unlock()
}

// recordingReplicator запоминает реплицированные сущности
type recordingReplicator struct {
	replication.Nop
	mu        sync.Mutex
	spawned   []replication.EntityState
	destroyed []uint64
}

func (r *recordingReplicator) ReplicateSpawn(ctx context.Context, st replication.EntityState) error {
	r.mu.Lock()
	r.spawned = append(r.spawned, st)
	r.mu.Unlock()
	return nil
}

func (r *recordingReplicator) ReplicateDestroy(ctx context.Context, id uint64, layer int) error {
	r.mu.Lock()
	r.destroyed = append(r.destroyed, id)
	r.mu.Unlock()
	return nil
}

// layerRegistry простая реализация LayerObjects
type layerRegistry struct {
	mu      sync.Mutex
	objects map[entity.ID]int
}

func (r *layerRegistry) Register(id entity.ID, layer int) {
	r.mu.Lock()
	if r.objects == nil {
		r.objects = make(map[entity.ID]int)
	}
	r.objects[id] = layer
	r.mu.Unlock()
}

func (r *layerRegistry) Unregister(id entity.ID) {
	r.mu.Lock()
	delete(r.objects, id)
	r.mu.Unlock()
}

func (r *layerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

type fixture struct {
	world    *World
	entities *entity.EntityManager
	store    *storage.FileStore
	svc      Services
	signs    []*testSign
}

func newFixture(t *testing.T, worldID string) *fixture {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{entities: entity.NewEntityManager(), store: store}

	behaviors := NewBehaviorRegistry()
	behaviors.Register("sign", func(item *catalog.ItemData) Occupant {
		s := &testSign{}
		f.signs = append(f.signs, s)
		return s
	})

	f.svc = Services{
		Catalog:   testCatalog(t),
		Entities:  f.entities,
		Behaviors: behaviors,
		Store:     store,
		Profile:   "slot1",
	}
	f.world = f.newWorld(t, worldID, 0)
	return f
}

func (f *fixture) newWorld(t *testing.T, worldID string, layer int) *World {
	t.Helper()

	data, err := f.svc.Catalog.World(worldID)
	require.NoError(t, err)

	w, err := New(Config{Data: data, Layer: layer, Origin: vec.Vec3{Z: float64(layer) * 10000}}, f.svc)
	require.NoError(t, err)
	return w
}

type placedTuple struct {
	Anchor   vec.Vec2
	Rotation grid.Rotation
	Category grid.Category
	ItemID   string
}

func tuples(w *World) map[placedTuple]*NodeLink {
	out := make(map[placedTuple]*NodeLink)
	for _, l := range w.Links() {
		out[placedTuple{l.Anchor, l.Rotation, l.Category, l.ItemID}] = l
	}
	return out
}
