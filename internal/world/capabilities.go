package world

import (
	"context"
	"sync"

	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/persist"
)

// Occupant поведение обитателя сетки. Остальные возможности объявляются
// явными интерфейсами и проверяются один раз при появлении.
type Occupant interface {
	Name() string
}

// Saver записывает состояние обитателя в данные сохранения
type Saver interface {
	SaveState(item *persist.Item) error
}

// Restorer восстанавливает состояние обитателя из данных сохранения
type Restorer interface {
	RestoreState(item *persist.Item) error
}

// SaveFilter позволяет обитателю отказаться от сохранения
type SaveFilter interface {
	ShouldBeSaved() bool
}

// AddedHook вызывается после регистрации связи в мире
type AddedHook interface {
	OnAdded(ctx context.Context, w *World, link *NodeLink)
}

// RemovedHook вызывается после удаления связи из мира
type RemovedHook interface {
	OnRemoved(ctx context.Context, w *World, link *NodeLink)
}

// Capabilities кеш возможностей обитателя
type Capabilities struct {
	Occupant Occupant
	Saver    Saver
	Restorer Restorer
	Filter   SaveFilter
	Added    AddedHook
	Removed  RemovedHook
}

// ResolveCapabilities проверяет, какие интерфейсы реализует обитатель
func ResolveCapabilities(o Occupant) Capabilities {
	caps := Capabilities{Occupant: o}
	if o == nil {
		return caps
	}
	caps.Saver, _ = o.(Saver)
	caps.Restorer, _ = o.(Restorer)
	caps.Filter, _ = o.(SaveFilter)
	caps.Added, _ = o.(AddedHook)
	caps.Removed, _ = o.(RemovedHook)
	return caps
}

// ShouldBeSaved по умолчанию true
func (c Capabilities) ShouldBeSaved() bool {
	if c.Filter == nil {
		return true
	}
	return c.Filter.ShouldBeSaved()
}

// BehaviorFactory создаёт поведение для нового обитателя
type BehaviorFactory func(item *catalog.ItemData) Occupant

// BehaviorRegistry реестр поведений по ключу из каталога
type BehaviorRegistry struct {
	mu        sync.RWMutex
	factories map[string]BehaviorFactory
}

// NewBehaviorRegistry создаёт пустой реестр
func NewBehaviorRegistry() *BehaviorRegistry {
	return &BehaviorRegistry{factories: make(map[string]BehaviorFactory)}
}

// Register добавляет фабрику поведения в реестр
func (r *BehaviorRegistry) Register(key string, factory BehaviorFactory) {
	r.mu.Lock()
	r.factories[key] = factory
	r.mu.Unlock()
}

// Get возвращает фабрику для ключа
func (r *BehaviorRegistry) Get(key string) (BehaviorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[key]
	return f, ok
}

// Resolve создаёт поведение для предмета. Пустой ключ или незарегистрированное
// поведение дают nil: у обитателя просто нет возможностей.
func (r *BehaviorRegistry) Resolve(item *catalog.ItemData) Occupant {
	if r == nil || item == nil || item.Behavior == "" {
		return nil
	}
	f, ok := r.Get(item.Behavior)
	if !ok {
		return nil
	}
	return f(item)
}
