package layers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world"
	"github.com/annel0/meadow-world/internal/world/entity"
	"github.com/annel0/meadow-world/internal/world/grid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogYAML = `
items:
  - id: fence
    width: 1
    height: 1
    place_scene: scenes/fence.scene
    placements: [Wall]
worlds:
  - id: farm
    title: Ферма
    width: 10
    height: 10
    root_scene: scenes/farm.scene
    entrances:
      - id: gate
        x: 2
        y: 3
        rotation: East
  - id: cave
    width: 6
    height: 6
    root_scene: scenes/cave.scene
    unload_on_exit: true
    terrain:
      - {x: 0, y: 0, width: 6, height: 6, top: 8}
    entrances:
      - id: ladder
        x: 1
        y: 1
  - id: barn
    width: 4
    height: 4
    root_scene: scenes/barn.scene
`

// tagReplicator запоминает рассылки тегов и таблицы слоёв
type tagReplicator struct {
	replication.Nop
	mu     sync.Mutex
	tags   [][]replication.LayerTag
	tables []replication.LayerTable
	moves  []replication.ObserverMove
}

func (r *tagReplicator) BroadcastLayerTags(ctx context.Context, tags []replication.LayerTag) error {
	r.mu.Lock()
	r.tags = append(r.tags, tags)
	r.mu.Unlock()
	return nil
}

func (r *tagReplicator) ReplicateLayerTable(ctx context.Context, table replication.LayerTable) error {
	r.mu.Lock()
	r.tables = append(r.tables, table)
	r.mu.Unlock()
	return nil
}

func (r *tagReplicator) BroadcastObserverMove(ctx context.Context, move replication.ObserverMove) error {
	r.mu.Lock()
	r.moves = append(r.moves, move)
	r.mu.Unlock()
	return nil
}

type fixture struct {
	m        *Manager
	entities *entity.EntityManager
	store    *storage.FileStore
	rep      *tagReplicator
	svc      world.Services
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	cat := catalog.New()
	require.NoError(t, cat.LoadYAML([]byte(testCatalogYAML), "test"))

	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{entities: entity.NewEntityManager(), store: store, rep: &tagReplicator{}}
	f.svc = world.Services{
		Catalog:    cat,
		Entities:   f.entities,
		Replicator: f.rep,
		Store:      store,
		Profile:    "slot1",
	}
	f.m = NewManager(cfg, f.svc)
	return f
}

func (f *fixture) load(t *testing.T, id string) *world.World {
	t.Helper()
	w, err := f.m.LoadWorld(context.Background(), id)
	require.NoError(t, err)
	return w
}

func (f *fixture) hidden(t *testing.T, id entity.ID) bool {
	t.Helper()
	e, err := f.entities.Get(id)
	require.NoError(t, err)
	return e.Hidden
}

func TestLoadWorldUsesLowestFreeLayer(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	farm := f.load(t, "farm")
	cave := f.load(t, "cave")
	assert.Equal(t, 0, farm.Layer())
	assert.Equal(t, 1, cave.Layer())
	assert.Equal(t, 0, f.m.ActiveLayer(), "первый загруженный мир становится активным")

	require.NoError(t, f.m.UnloadWorld(ctx, 0))
	barn := f.load(t, "barn")
	assert.Equal(t, 0, barn.Layer())
	assert.Equal(t, []int{0, 1}, f.m.Layers())

	table := f.m.LayerTable()
	assert.Equal(t, map[int]string{0: "barn", 1: "cave"}, table.Worlds)
}

func TestLoadWorldTwiceReturnsSameInstance(t *testing.T) {
	f := newFixture(t, Config{})

	first := f.load(t, "farm")
	second := f.load(t, "farm")
	assert.Same(t, first, second)
	assert.Equal(t, []int{0}, f.m.Layers())
}

func TestConcurrentLoadsShareOneInstance(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	const callers = 16
	results := make([]*world.World, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.m.LoadWorld(ctx, "farm")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, []int{0}, f.m.Layers())
	assert.Len(t, f.m.Worlds(), 1)

	// Второй мир по-прежнему занимает следующий слой
	cave := f.load(t, "cave")
	assert.Equal(t, 1, cave.Layer())
}

func TestLoadUnknownWorld(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.m.LoadWorld(context.Background(), "moon")
	require.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Empty(t, f.m.Layers())
	assert.Equal(t, NoLayer, f.m.ActiveLayer())
}

func TestLayersDoNotOverlap(t *testing.T) {
	f := newFixture(t, Config{})

	farm := f.load(t, "farm")
	cave := f.load(t, "cave")

	assert.Equal(t, vec.Vec3{}, farm.Origin())
	assert.Equal(t, vec.Vec3{Z: LayerOffset}, cave.Origin())

	// Самая высокая точка нижнего слоя всё равно ниже основания следующего
	top := farm.ToWorld(vec.Vec2{X: 9, Y: 9}, true).Z + float64(farm.Height()*grid.CellSize)
	assert.Less(t, top, cave.Origin().Z)

	pos := cave.ToWorld(vec.Vec2{X: 1, Y: 1}, true)
	assert.Equal(t, LayerOffset+8, pos.Z)
	assert.Equal(t, vec.Vec2{X: 1, Y: 1}, cave.ToCell(pos))
}

func TestCustomLayerOffset(t *testing.T) {
	f := newFixture(t, Config{LayerOffset: 500})

	f.load(t, "farm")
	cave := f.load(t, "cave")
	assert.Equal(t, 500.0, cave.Origin().Z)
}

func TestVisibilityFollowsActiveLayer(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	farm := f.load(t, "farm")
	cave := f.load(t, "cave")

	farmFence, err := farm.SpawnPlaced(ctx, "fence", vec.Vec2{X: 1, Y: 1}, grid.North, grid.Wall)
	require.NoError(t, err)
	caveFence, err := cave.SpawnPlaced(ctx, "fence", vec.Vec2{X: 2, Y: 2}, grid.North, grid.Wall)
	require.NoError(t, err)

	assert.True(t, farm.Visible())
	assert.False(t, cave.Visible())
	assert.False(t, f.hidden(t, farm.Root()))
	assert.False(t, f.hidden(t, farmFence.Entity))
	assert.True(t, f.hidden(t, cave.Root()))
	assert.True(t, f.hidden(t, caveFence.Entity))

	obj, ok := f.m.Object(caveFence.Entity)
	require.True(t, ok)
	assert.Equal(t, 1, obj.Layer)
	assert.True(t, obj.Hidden)

	require.NoError(t, f.m.SetActiveWorld(ctx, 1))
	assert.False(t, farm.Visible())
	assert.True(t, cave.Visible())
	assert.True(t, f.hidden(t, farmFence.Entity))
	assert.False(t, f.hidden(t, caveFence.Entity))

	f.rep.mu.Lock()
	last := f.rep.tags[len(f.rep.tags)-1]
	f.rep.mu.Unlock()
	assert.Len(t, last, 4, "два корня и два забора меняют тег")

	assert.Zero(t, f.m.RebuildVisibility(ctx), "повторное перестроение ничего не меняет")

	require.NoError(t, farm.Remove(ctx, farmFence))
	_, ok = f.m.Object(farmFence.Entity)
	assert.False(t, ok)
}

func TestSetActiveUnknownLayer(t *testing.T) {
	f := newFixture(t, Config{})
	f.load(t, "farm")

	err := f.m.SetActiveWorld(context.Background(), 7)
	require.ErrorIs(t, err, ErrUnknownLayer)
	assert.Equal(t, 0, f.m.ActiveLayer())
}

func TestUnloadBlockedByPlayers(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	f.load(t, "farm")

	require.NoError(t, f.m.AttachPlayer("bob", 0))
	require.ErrorIs(t, f.m.AttachPlayer("bob", 3), ErrUnknownLayer)

	err := f.m.UnloadWorld(ctx, 0)
	require.ErrorIs(t, err, ErrPlayersOnLayer)
	assert.Equal(t, []string{"bob"}, f.m.PlayersOnLayer(0))

	require.NoError(t, f.m.DetachPlayer(ctx, "bob"))
	require.ErrorIs(t, f.m.DetachPlayer(ctx, "bob"), ErrUnknownPlayer)
	require.NoError(t, f.m.UnloadWorld(ctx, 0))
	require.ErrorIs(t, f.m.UnloadWorld(ctx, 0), ErrUnknownLayer)
}

func TestUnloadActiveFallsBackToLowestLayer(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.load(t, "farm")
	f.load(t, "cave")
	barn := f.load(t, "barn")
	require.NoError(t, f.m.SetActiveWorld(ctx, 2))

	var changes [][2]int
	f.m.OnActiveWorldChanged(func(prev, next int) { changes = append(changes, [2]int{prev, next}) })

	require.NoError(t, f.m.UnloadWorld(ctx, 2))
	assert.Equal(t, 0, f.m.ActiveLayer())
	assert.Equal(t, [][2]int{{2, 0}}, changes)

	_, err := f.entities.Get(barn.Root())
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, f.m.UnloadWorld(ctx, 0))
	require.NoError(t, f.m.UnloadWorld(ctx, 1))
	assert.Equal(t, NoLayer, f.m.ActiveLayer())
	assert.Zero(t, f.entities.Count())
}

func TestUnloadSavesAndReloadRestores(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	farm := f.load(t, "farm")
	_, err := farm.SpawnPlaced(ctx, "fence", vec.Vec2{X: 4, Y: 5}, grid.South, grid.Wall)
	require.NoError(t, err)

	require.NoError(t, f.m.UnloadWorld(ctx, 0))
	ids, err := f.store.List(ctx, "slot1")
	require.NoError(t, err)
	assert.Equal(t, []string{"farm"}, ids)

	farm = f.load(t, "farm")
	link, ok := farm.GetOccupant(vec.Vec2{X: 4, Y: 5}, grid.Wall)
	require.True(t, ok)
	assert.Equal(t, "fence", link.ItemID)
	assert.Equal(t, grid.South, link.Rotation)
	assert.False(t, f.hidden(t, link.Entity))
}

func TestSaveAllWithoutStore(t *testing.T) {
	f := newFixture(t, Config{})
	svc := f.svc
	svc.Store = nil
	m := NewManager(Config{}, svc)

	_, err := m.LoadWorld(context.Background(), "farm")
	require.NoError(t, err)

	err = m.SaveAll(context.Background())
	require.ErrorIs(t, err, world.ErrNoStore)
}

func TestRunAutosaves(t *testing.T) {
	f := newFixture(t, Config{AutosaveInterval: 10 * time.Millisecond})
	f.load(t, "farm")
	f.load(t, "cave")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.m.Run(ctx) }()

	require.Eventually(t, func() bool {
		ids, err := f.store.List(context.Background(), "slot1")
		return err == nil && len(ids) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run не завершился после отмены")
	}
}

func TestRunWithoutInterval(t *testing.T) {
	f := newFixture(t, Config{})
	assert.ErrorIs(t, f.m.Run(context.Background()), ErrAutosaveDisabled)
}

func TestNonAuthoritativeManager(t *testing.T) {
	f := newFixture(t, Config{})
	svc := f.svc
	svc.Authority = world.StaticAuthority(false)
	m := NewManager(Config{}, svc)

	_, err := m.LoadWorld(context.Background(), "farm")
	assert.ErrorIs(t, err, world.ErrNotAuthoritative)
}

func TestMetricsReflectState(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newFixture(t, Config{Metrics: metrics})
	ctx := context.Background()

	farm := f.load(t, "farm")
	f.load(t, "cave")
	_, err := farm.SpawnPlaced(ctx, "fence", vec.Vec2{X: 0, Y: 0}, grid.North, grid.Wall)
	require.NoError(t, err)
	require.NoError(t, f.m.SetActiveWorld(ctx, 1))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.loadedWorlds))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.activeLayer))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.occupants.WithLabelValues("0", "farm")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.layerObjects))

	require.NoError(t, f.m.SaveAll(ctx))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.saves.WithLabelValues("ok")))
	assert.Positive(t, testutil.ToFloat64(metrics.visibilityOps))
}

func TestMoveObserverToEntrance(t *testing.T) {
	observers := storage.NewMemoryObserverRepo()
	f := newFixture(t, Config{LocalPlayer: "local", Observers: observers})
	ctx := context.Background()

	f.load(t, "farm")
	cave := f.load(t, "cave")

	move, err := f.m.MoveObserverToEntrance(ctx, "local", 1, "ladder")
	require.NoError(t, err)
	assert.Equal(t, 1, f.m.ActiveLayer())
	assert.Equal(t, cave.ToWorld(vec.Vec2{X: 1, Y: 1}, true), move.Position)
	assert.Equal(t, LayerOffset+8, move.Position.Z)

	pos, found, err := observers.Load(ctx, "local")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "cave", pos.WorldID)
	assert.Equal(t, "ladder", pos.Entrance)

	move, err = f.m.MoveObserverToEntrance(ctx, "local", 0, "gate")
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 80, Y: 112}, move.Position)
	assert.Equal(t, 90.0, move.Yaw)
	assert.Equal(t, 0, f.m.ActiveLayer())
	assert.Equal(t, []int{0}, f.m.Layers(), "пещера выгружается, когда её покидает последний игрок")

	f.rep.mu.Lock()
	assert.Len(t, f.rep.moves, 2)
	f.rep.mu.Unlock()

	_, err = f.m.MoveObserverToEntrance(ctx, "local", 0, "chimney")
	assert.ErrorIs(t, err, ErrUnknownEntrance)
	_, err = f.m.MoveObserverToEntrance(ctx, "local", 5, "gate")
	assert.ErrorIs(t, err, ErrUnknownLayer)
}

func TestRemoteObserverKeepsActiveLayer(t *testing.T) {
	f := newFixture(t, Config{LocalPlayer: "local"})
	ctx := context.Background()

	f.load(t, "farm")
	f.load(t, "cave")

	_, err := f.m.MoveObserverToEntrance(ctx, "guest", 1, "ladder")
	require.NoError(t, err)
	assert.Equal(t, 0, f.m.ActiveLayer())
	layer, ok := f.m.PlayerLayer("guest")
	require.True(t, ok)
	assert.Equal(t, 1, layer)

	require.NoError(t, f.m.DetachPlayer(ctx, "guest"))
	assert.Equal(t, []int{0}, f.m.Layers())
}

func TestResumeObserver(t *testing.T) {
	observers := storage.NewMemoryObserverRepo()
	f := newFixture(t, Config{LocalPlayer: "local", Observers: observers})
	ctx := context.Background()

	move, err := f.m.ResumeObserver(ctx, "local", "farm", "gate")
	require.NoError(t, err)
	assert.Equal(t, "gate", move.Entrance)

	_, err = f.m.MoveObserverToEntrance(ctx, "local", f.load(t, "cave").Layer(), "ladder")
	require.NoError(t, err)

	next := NewManager(Config{LocalPlayer: "local", Observers: observers}, f.svc)
	move, err = next.ResumeObserver(ctx, "local", "farm", "gate")
	require.NoError(t, err)
	assert.Equal(t, "ladder", move.Entrance)
	w, ok := next.ActiveWorld()
	require.True(t, ok)
	assert.Equal(t, "cave", w.ID())
}

func TestManagerPublishesEvents(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.NewMemoryBus(64)

	received := make(chan *eventbus.Envelope, 16)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Sources: []string{EventSource}}, func(ctx context.Context, ev *eventbus.Envelope) {
		received <- ev
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	f := newFixture(t, Config{})
	svc := f.svc
	svc.Bus = bus
	m := NewManager(Config{}, svc)

	var loaded []string
	var unloaded []int
	m.OnWorldLoaded(func(w *world.World) { loaded = append(loaded, w.ID()) })
	m.OnWorldUnloaded(func(layer int, id string) { unloaded = append(unloaded, layer) })

	_, err = m.LoadWorld(ctx, "farm")
	require.NoError(t, err)
	require.NoError(t, m.UnloadWorld(ctx, 0))

	assert.Equal(t, []string{"farm"}, loaded)
	assert.Equal(t, []int{0}, unloaded)

	types := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(types) < 3 {
		select {
		case ev := <-received:
			types[ev.EventType] = true
			if ev.EventType == eventbus.TypeWorldLoaded {
				var payload WorldEvent
				require.NoError(t, ev.Decode(&payload))
				assert.Equal(t, WorldEvent{World: "farm", Layer: 0}, payload)
			}
		case <-timeout:
			t.Fatalf("получены не все события: %v", types)
		}
	}
	assert.True(t, types[eventbus.TypeWorldLoaded])
	assert.True(t, types[eventbus.TypeWorldUnloaded])
	assert.True(t, types[eventbus.TypeActiveChanged])
}

func TestLayerObjectRecompute(t *testing.T) {
	obj := &LayerObject{EntityID: 5, Layer: 2, Hidden: true}

	assert.False(t, obj.Recompute(1))
	assert.True(t, obj.Recompute(2))
	assert.False(t, obj.Hidden)
	assert.Equal(t, replication.LayerTag{EntityID: 5, Layer: 2}, obj.Tag())
	assert.True(t, obj.Recompute(NoLayer))
}
