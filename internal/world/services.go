package world

import (
	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/replication"
	"github.com/annel0/meadow-world/internal/storage"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/entity"
)

// DefaultProfile профиль сохранения по умолчанию
const DefaultProfile = "default"

// EntityFactory клонирует сцены и уничтожает сущности
type EntityFactory interface {
	Instantiate(prefab string, pos vec.Vec3, yaw float64) (*entity.Entity, error)
	Destroy(id entity.ID)
	Get(id entity.ID) (entity.Entity, error)
}

// LayerObjects реестр объектов слоя, которым нужен тег видимости
type LayerObjects interface {
	Register(id entity.ID, layer int)
	Unregister(id entity.ID)
}

// Authority сообщает, может ли этот узел менять состояние мира
type Authority interface {
	IsAuthoritative() bool
}

// StaticAuthority фиксированный признак авторитетности
type StaticAuthority bool

func (a StaticAuthority) IsAuthoritative() bool { return bool(a) }

// Services явный контекст зависимостей мира. Передаётся каждому миру
// при создании вместо глобальных синглтонов.
type Services struct {
	Catalog      *catalog.Catalog
	Entities     EntityFactory
	Behaviors    *BehaviorRegistry
	Replicator   replication.Replicator
	Store        storage.SaveStore
	Bus          eventbus.EventBus // nil = события только локальным подписчикам
	Authority    Authority
	Profile      string
	LayerObjects LayerObjects
}

// withDefaults заполняет необязательные зависимости
func (s Services) withDefaults() Services {
	if s.Catalog == nil {
		s.Catalog = catalog.New()
	}
	if s.Entities == nil {
		s.Entities = entity.NewEntityManager()
	}
	if s.Replicator == nil {
		s.Replicator = replication.Nop{}
	}
	if s.Authority == nil {
		s.Authority = StaticAuthority(true)
	}
	if s.Profile == "" {
		s.Profile = DefaultProfile
	}
	return s
}
