package catalog

import (
	"fmt"

	"github.com/annel0/meadow-world/internal/world/grid"
)

// DefaultDropScene сцена выброшенного предмета, если в каталоге она не указана
const DefaultDropScene = "scenes/dropped_item.scene"

// ItemData описание предмета из каталога. Только для чтения.
type ItemData struct {
	ID           string   `yaml:"id"`
	ResourceName string   `yaml:"resource_name"`
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
	Placements   []string `yaml:"placements"` // Разрешённые категории
	PlaceScene   string   `yaml:"place_scene"`
	DropScene    string   `yaml:"drop_scene"`
	Behavior     string   `yaml:"behavior"` // Ключ поведения обитателя (пусто = без поведения)

	mask grid.Mask
}

// Mask возвращает маску разрешённых категорий
func (d *ItemData) Mask() grid.Mask {
	return d.mask
}

// Allows сообщает, можно ли размещать предмет в категории
func (d *ItemData) Allows(c grid.Category) bool {
	return d.mask.Has(c)
}

// Size возвращает ширину и высоту, приводя нулевые значения к 1
func (d *ItemData) Size() (int, int) {
	w, h := d.Width, d.Height
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// DropScenePath возвращает сцену для выброшенного предмета
func (d *ItemData) DropScenePath() string {
	if d.DropScene == "" {
		return DefaultDropScene
	}
	return d.DropScene
}

// Name возвращает отображаемое имя
func (d *ItemData) Name() string {
	if d.ResourceName != "" {
		return d.ResourceName
	}
	return d.ID
}

// normalize заполняет производные поля и проверяет описание
func (d *ItemData) normalize() error {
	if d.ID == "" {
		return fmt.Errorf("предмет без id")
	}
	if d.Width < 0 || d.Height < 0 {
		return fmt.Errorf("предмет %s: отрицательный размер %dx%d", d.ID, d.Width, d.Height)
	}

	d.mask = 0
	for _, name := range d.Placements {
		c, err := grid.ParseCategory(name)
		if err != nil {
			return fmt.Errorf("предмет %s: %w", d.ID, err)
		}
		d.mask |= grid.Mask(c)
	}
	return nil
}

// NewItem создаёт описание предмета в коде (тесты, встроенные предметы)
func NewItem(id string, width, height int, placeScene string, placements ...grid.Category) *ItemData {
	names := make([]string, 0, len(placements))
	for _, c := range placements {
		names = append(names, c.String())
	}
	d := &ItemData{
		ID:         id,
		Width:      width,
		Height:     height,
		Placements: names,
		PlaceScene: placeScene,
	}
	d.mask = grid.MaskOf(placements...)
	return d
}
