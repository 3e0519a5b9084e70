package occupants

import (
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/meadow-world/internal/persist"
)

// DefaultChestSlots вместимость сундука по умолчанию
const DefaultChestSlots = 24

// ErrChestFull в сундуке нет свободных ячеек
var ErrChestFull = errors.New("сундук заполнен")

// Chest сундук с содержимым
type Chest struct {
	mu    sync.Mutex
	name  string
	slots []string // id предметов, пустая строка = свободно
}

// NewChest создаёт пустой сундук
func NewChest(name string, size int) *Chest {
	return &Chest{name: name, slots: make([]string, size)}
}

func (c *Chest) Name() string { return c.name }

// Put кладёт предмет в первую свободную ячейку
func (c *Chest) Put(itemID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.slots {
		if s == "" {
			c.slots[i] = itemID
			return i, nil
		}
	}
	return -1, ErrChestFull
}

// Take забирает предмет из ячейки
func (c *Chest) Take(slot int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot < 0 || slot >= len(c.slots) {
		return "", fmt.Errorf("ячейка %d вне сундука", slot)
	}
	id := c.slots[slot]
	c.slots[slot] = ""
	return id, nil
}

// Contents копия содержимого
func (c *Chest) Contents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.slots...)
}

func (c *Chest) SaveState(item *persist.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return item.SetArbitraryData("slots", c.slots)
}

func (c *Chest) RestoreState(item *persist.Item) error {
	if !item.Has("slots") {
		return nil
	}
	slots, err := persist.GetArbitraryData[[]string](item, "slots")
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Размер сундука задаёт каталог; лишние ячейки сохранения отбрасываются
	for i := range c.slots {
		c.slots[i] = ""
		if i < len(slots) {
			c.slots[i] = slots[i]
		}
	}
	return nil
}
