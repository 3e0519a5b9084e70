// Package layers управляет одновременно загруженными мирами. Каждый мир
// получает номер слоя и смещается по вертикали на LayerOffset, поэтому
// слои не пересекаются в пространстве.
package layers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/observability"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world"
	"github.com/annel0/meadow-world/internal/world/entity"
	"github.com/annel0/meadow-world/internal/world/terrain"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// LayerOffset вертикальное смещение между слоями в мировых единицах
const LayerOffset = 10000.0

// NoLayer значение активного слоя, когда ни один мир не загружен
const NoLayer = -1

// EventSource имя источника событий менеджера в шине
const EventSource = "layers"

var (
	ErrUnknownLayer     = errors.New("слой не загружен")
	ErrPlayersOnLayer   = errors.New("на слое остались игроки")
	ErrUnknownEntrance  = errors.New("неизвестный вход")
	ErrUnknownPlayer    = errors.New("игрок не присоединён")
	ErrAutosaveDisabled = errors.New("автосохранение отключено")
)

// Config параметры менеджера миров
type Config struct {
	LayerOffset      float64       // 0 = LayerOffset
	AutosaveInterval time.Duration // 0 = без автосохранения
	LocalPlayer      string        // Наблюдатель, чей слой становится активным
	Metrics          *Metrics
	Observers        storage.ObserverRepo // nil = позиции наблюдателей не сохраняются
}

// hider меняет тег видимости сущности
type hider interface {
	SetHidden(id entity.ID, hidden bool) error
}

// Manager владеет таблицей слой → мир и тегами видимости объектов слоёв
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	svc     world.Services
	worlds  map[int]*world.World
	active  int
	players map[string]int // игрок → слой
	loads   singleflight.Group

	objMu   sync.Mutex
	objects map[entity.ID]*LayerObject

	handlersMu sync.RWMutex
	onLoaded   []func(*world.World)
	onUnloaded []func(layer int, worldID string)
	onActive   []func(prev, next int)
}

// NewManager создаёт менеджер. Менеджер сам становится реестром объектов
// слоёв для всех своих миров.
func NewManager(cfg Config, svc world.Services) *Manager {
	if cfg.LayerOffset == 0 {
		cfg.LayerOffset = LayerOffset
	}
	if svc.Catalog == nil {
		svc.Catalog = catalog.New()
	}
	if svc.Entities == nil {
		svc.Entities = entity.NewEntityManager()
	}
	if svc.Replicator == nil {
		svc.Replicator = replication.Nop{}
	}
	if svc.Authority == nil {
		svc.Authority = world.StaticAuthority(true)
	}

	m := &Manager{
		cfg:     cfg,
		worlds:  make(map[int]*world.World),
		active:  NoLayer,
		players: make(map[string]int),
		objects: make(map[entity.ID]*LayerObject),
	}
	svc.LayerObjects = m
	m.svc = svc
	return m
}

// Origin возвращает начало мира на слое
func (m *Manager) Origin(layer int) vec.Vec3 {
	return vec.Vec3{Z: float64(layer) * m.cfg.LayerOffset}
}

// LoadWorld загружает мир из каталога на наименьший свободный слой.
// Повторная загрузка уже загруженного мира возвращает существующий экземпляр.
func (m *Manager) LoadWorld(ctx context.Context, worldID string) (*world.World, error) {
	if !m.svc.Authority.IsAuthoritative() {
		return nil, world.ErrNotAuthoritative
	}
	if existing, ok := m.GetWorldByID(worldID); ok {
		return existing, nil
	}

	ctx, span := observability.StartWorldSpan(ctx, "layers.load", worldID, NoLayer)
	// Параллельные загрузки одного мира ждут первую и получают её результат
	v, err, shared := m.loads.Do(worldID, func() (interface{}, error) {
		return m.loadWorld(ctx, worldID)
	})
	span.SetAttributes(attribute.Bool("meadow.load.shared", shared))
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}
	w := v.(*world.World)
	span.SetAttributes(observability.AttrLayer.Int(w.Layer()))
	observability.EndSpan(span, nil)
	return w, nil
}

func (m *Manager) loadWorld(ctx context.Context, worldID string) (*world.World, error) {
	data, err := m.svc.Catalog.World(worldID)
	if err != nil {
		return nil, err
	}
	if data.RootScene == "" {
		return nil, fmt.Errorf("мир %s: %w", worldID, world.ErrMissingScene)
	}

	m.mu.Lock()
	if existing := m.worldByIDLocked(worldID); existing != nil {
		m.mu.Unlock()
		return existing, nil
	}
	layer := 0
	for {
		if _, taken := m.worlds[layer]; !taken {
			break
		}
		layer++
	}
	origin := m.Origin(layer)

	root, err := m.svc.Entities.Instantiate(data.RootScene, origin, 0)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("мир %s: корневая сцена: %w", worldID, err)
	}

	w, err := world.New(world.Config{Data: data, Layer: layer, Origin: origin, Root: root.ID}, m.svc)
	if err != nil {
		m.mu.Unlock()
		m.svc.Entities.Destroy(root.ID)
		return nil, err
	}
	m.worlds[layer] = w
	m.mu.Unlock()

	m.Register(root.ID, layer)

	if err := w.Load(ctx); err != nil && !errors.Is(err, world.ErrNoStore) {
		m.discard(ctx, w)
		return nil, err
	}

	logging.Info("🌍 Мир %s загружен на слой %d (смещение %.0f)", worldID, layer, origin.Z)

	m.mu.Lock()
	firstWorld := m.active == NoLayer
	m.mu.Unlock()
	if firstWorld {
		if err := m.SetActiveWorld(ctx, layer); err != nil {
			return nil, err
		}
	} else {
		m.RebuildVisibility(ctx)
	}

	m.fireLoaded(ctx, w)
	m.replicateTable(ctx)
	return w, nil
}

// discard убирает мир без сохранения (ошибка загрузки)
func (m *Manager) discard(ctx context.Context, w *world.World) {
	w.Clear(ctx)
	m.Unregister(w.Root())
	m.svc.Entities.Destroy(w.Root())

	m.mu.Lock()
	delete(m.worlds, w.Layer())
	m.mu.Unlock()
}

// SetActiveWorld делает слой активным для локального наблюдателя
func (m *Manager) SetActiveWorld(ctx context.Context, layer int) error {
	m.mu.Lock()
	if _, ok := m.worlds[layer]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("слой %d: %w", layer, ErrUnknownLayer)
	}
	prev := m.active
	m.active = layer
	m.mu.Unlock()

	m.RebuildVisibility(ctx)

	if prev != layer {
		logging.Debug("Активный слой: %d → %d", prev, layer)
		m.fireActive(ctx, prev, layer)
		m.replicateTable(ctx)
	}
	return nil
}

// RebuildVisibility помечает миры видимыми или скрытыми и пересчитывает теги
// всех объектов слоёв. Изменившиеся теги рассылаются наблюдателям.
// Возвращает количество изменившихся тегов.
func (m *Manager) RebuildVisibility(ctx context.Context) int {
	m.mu.RLock()
	active := m.active
	for layer, w := range m.worlds {
		w.SetVisible(layer == active)
	}
	m.mu.RUnlock()

	m.objMu.Lock()
	var changed []replication.LayerTag
	for _, obj := range m.objects {
		if obj.Recompute(active) {
			m.applyHidden(obj)
			changed = append(changed, obj.Tag())
		}
	}
	m.objMu.Unlock()

	sort.Slice(changed, func(i, j int) bool { return changed[i].EntityID < changed[j].EntityID })
	if len(changed) > 0 {
		if err := m.svc.Replicator.BroadcastLayerTags(ctx, changed); err != nil {
			logging.Warn("Рассылка тегов слоёв: %v", err)
		}
	}

	m.cfg.Metrics.visibilityRebuilt()
	m.observe()
	return len(changed)
}

// UnloadWorld сохраняет и выгружает мир. Запрещено, пока на слое есть игроки.
func (m *Manager) UnloadWorld(ctx context.Context, layer int) error {
	if !m.svc.Authority.IsAuthoritative() {
		return world.ErrNotAuthoritative
	}

	m.mu.RLock()
	w, ok := m.worlds[layer]
	players := m.playersOnLayerLocked(layer)
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("слой %d: %w", layer, ErrUnknownLayer)
	}
	if len(players) > 0 {
		return fmt.Errorf("слой %d (%d): %w", layer, len(players), ErrPlayersOnLayer)
	}

	if err := m.saveWorld(ctx, w); err != nil && !errors.Is(err, world.ErrNoStore) {
		return err
	}

	w.Clear(ctx)
	m.Unregister(w.Root())
	m.svc.Entities.Destroy(w.Root())

	m.mu.Lock()
	delete(m.worlds, layer)
	prev := m.active
	if m.active == layer {
		m.active = m.lowestLayerLocked()
	}
	next := m.active
	m.mu.Unlock()

	logging.Info("🌍 Мир %s выгружен со слоя %d", w.ID(), layer)

	m.RebuildVisibility(ctx)
	if prev != next {
		m.fireActive(ctx, prev, next)
	}
	m.fireUnloaded(ctx, layer, w.ID())
	m.replicateTable(ctx)
	return nil
}

func (m *Manager) lowestLayerLocked() int {
	lowest := NoLayer
	for layer := range m.worlds {
		if lowest == NoLayer || layer < lowest {
			lowest = layer
		}
	}
	return lowest
}

func (m *Manager) saveWorld(ctx context.Context, w *world.World) error {
	ctx, span := observability.StartWorldSpan(ctx, "layers.save", w.ID(), w.Layer())
	start := time.Now()
	err := w.Save(ctx)
	m.cfg.Metrics.saveResult(err, time.Since(start).Seconds())
	observability.EndSpan(span, err)
	return err
}

// SaveAll сохраняет все загруженные миры. Ошибки отдельных миров
// объединяются; остальные миры всё равно сохраняются.
func (m *Manager) SaveAll(ctx context.Context) error {
	var errs []error
	for _, w := range m.Worlds() {
		if err := m.saveWorld(ctx, w); err != nil {
			errs = append(errs, fmt.Errorf("слой %d (%s): %w", w.Layer(), w.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Run запускает автосохранение и блокируется до отмены ctx. Неудачное
// сохранение пишется в лог и повторяется на следующем тике.
func (m *Manager) Run(ctx context.Context) error {
	if m.cfg.AutosaveInterval <= 0 {
		return ErrAutosaveDisabled
	}

	ticker := time.NewTicker(m.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.SaveAll(ctx); err != nil {
				logging.Error("Автосохранение: %v", err)
			}
			m.observe()
		}
	}
}

// GetWorld возвращает мир на слое
func (m *Manager) GetWorld(layer int) (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worlds[layer]
	return w, ok
}

// GetWorldByID ищет загруженный мир по id каталога
func (m *Manager) GetWorldByID(worldID string) (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w := m.worldByIDLocked(worldID)
	return w, w != nil
}

func (m *Manager) worldByIDLocked(worldID string) *world.World {
	for _, w := range m.worlds {
		if w.ID() == worldID {
			return w
		}
	}
	return nil
}

// Layers возвращает занятые слои по возрастанию
func (m *Manager) Layers() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int, 0, len(m.worlds))
	for layer := range m.worlds {
		out = append(out, layer)
	}
	sort.Ints(out)
	return out
}

// Worlds возвращает загруженные миры по возрастанию слоя
func (m *Manager) Worlds() []*world.World {
	layers := m.Layers()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*world.World, 0, len(layers))
	for _, layer := range layers {
		if w, ok := m.worlds[layer]; ok {
			out = append(out, w)
		}
	}
	return out
}

// ActiveLayer возвращает активный слой или NoLayer
func (m *Manager) ActiveLayer() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ActiveWorld возвращает активный мир
func (m *Manager) ActiveWorld() (*world.World, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worlds[m.active]
	return w, ok
}

// LayerTable возвращает реплицируемую таблицу слоёв
func (m *Manager) LayerTable() replication.LayerTable {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table := replication.LayerTable{Worlds: make(map[int]string, len(m.worlds)), Active: m.active}
	for layer, w := range m.worlds {
		table.Worlds[layer] = w.ID()
	}
	return table
}

func (m *Manager) replicateTable(ctx context.Context) {
	if err := m.svc.Replicator.ReplicateLayerTable(ctx, m.LayerTable()); err != nil {
		logging.Warn("Репликация таблицы слоёв: %v", err)
	}
	m.observe()
}

// Register регистрирует сущность как объект слоя и сразу выставляет ей тег
func (m *Manager) Register(id entity.ID, layer int) {
	active := m.ActiveLayer()

	m.objMu.Lock()
	obj := &LayerObject{EntityID: id, Layer: layer}
	obj.Hidden = layer != active
	m.objects[id] = obj
	m.applyHidden(obj)
	m.objMu.Unlock()
}

// Unregister убирает объект слоя
func (m *Manager) Unregister(id entity.ID) {
	m.objMu.Lock()
	delete(m.objects, id)
	m.objMu.Unlock()
}

// Object возвращает копию объекта слоя
func (m *Manager) Object(id entity.ID) (LayerObject, bool) {
	m.objMu.Lock()
	defer m.objMu.Unlock()
	obj, ok := m.objects[id]
	if !ok {
		return LayerObject{}, false
	}
	return *obj, true
}

func (m *Manager) applyHidden(obj *LayerObject) {
	h, ok := m.svc.Entities.(hider)
	if !ok {
		return
	}
	if err := h.SetHidden(obj.EntityID, obj.Hidden); err != nil {
		logging.Trace("Тег видимости %d: %v", obj.EntityID, err)
	}
}

// WorldInfo сводка по загруженному миру
type WorldInfo struct {
	Layer     int           `json:"layer"`
	ID        string        `json:"id"`
	Title     string        `json:"title,omitempty"`
	Visible   bool          `json:"visible"`
	Occupants int           `json:"occupants"`
	Players   []string      `json:"players"`
	Origin    vec.Vec3      `json:"origin"`
	Terrain   terrain.Stats `json:"terrain"`
}

// Snapshot сводка состояния менеджера
type Snapshot struct {
	Active  int         `json:"active"`
	Worlds  []WorldInfo `json:"worlds"`
	Objects int         `json:"objects"`
}

// Snapshot собирает сводку для консоли и метрик
func (m *Manager) Snapshot() Snapshot {
	worlds := m.Worlds()

	m.mu.RLock()
	s := Snapshot{Active: m.active, Worlds: make([]WorldInfo, 0, len(worlds))}
	players := make(map[int][]string, len(worlds))
	for _, w := range worlds {
		players[w.Layer()] = m.playersOnLayerLocked(w.Layer())
	}
	m.mu.RUnlock()

	for _, w := range worlds {
		s.Worlds = append(s.Worlds, WorldInfo{
			Layer:     w.Layer(),
			ID:        w.ID(),
			Title:     w.Data().Title,
			Visible:   w.Visible(),
			Occupants: w.Len(),
			Players:   players[w.Layer()],
			Origin:    w.Origin(),
			Terrain:   w.Terrain().Stats(),
		})
	}

	m.objMu.Lock()
	s.Objects = len(m.objects)
	m.objMu.Unlock()
	return s
}

func (m *Manager) observe() {
	if m.cfg.Metrics == nil {
		return
	}
	m.cfg.Metrics.observe(m.Snapshot())
}
