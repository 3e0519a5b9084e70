package occupants

import (
	"sync"

	"github.com/annel0/meadow-world/internal/persist"
)

// DefaultMaxStage последняя стадия роста по умолчанию
const DefaultMaxStage = 5

// Crop грядка с растением. Стадия роста и полив переживают сохранение.
type Crop struct {
	mu       sync.Mutex
	name     string
	stage    int
	maxStage int
	watered  bool
}

// NewCrop создаёт растение на нулевой стадии
func NewCrop(name string, maxStage int) *Crop {
	if maxStage < 1 {
		maxStage = DefaultMaxStage
	}
	return &Crop{name: name, maxStage: maxStage}
}

func (c *Crop) Name() string { return c.name }

// Water поливает растение до следующего роста
func (c *Crop) Water() {
	c.mu.Lock()
	c.watered = true
	c.mu.Unlock()
}

// Grow продвигает политое растение на одну стадию (раз в игровой день).
// Возвращает true, если стадия изменилась.
func (c *Crop) Grow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.watered || c.stage >= c.maxStage {
		c.watered = false
		return false
	}
	c.stage++
	c.watered = false
	return true
}

// Stage текущая стадия роста
func (c *Crop) Stage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Ripe сообщает, что растение можно собирать
func (c *Crop) Ripe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage >= c.maxStage
}

func (c *Crop) SaveState(item *persist.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := item.SetArbitraryData("growth", c.stage); err != nil {
		return err
	}
	return item.SetArbitraryData("watered", c.watered)
}

func (c *Crop) RestoreState(item *persist.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stage = persist.GetArbitraryDataOr(item, "growth", 0)
	if c.stage > c.maxStage {
		c.stage = c.maxStage
	}
	c.watered = persist.GetArbitraryDataOr(item, "watered", false)
	return nil
}
