package catalog

import (
	"fmt"

	"github.com/annel0/meadow-world/internal/physics"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// TerrainPatch участок рельефа в ячейках
type TerrainPatch struct {
	X      int     `yaml:"x"`
	Y      int     `yaml:"y"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Top    float64 `yaml:"top"`
}

// Entrance именованная точка входа в мир
type Entrance struct {
	ID       string `yaml:"id"`
	X        int    `yaml:"x"`
	Y        int    `yaml:"y"`
	Rotation string `yaml:"rotation"`
}

// Cell возвращает ячейку входа
func (e Entrance) Cell() vec.Vec2 {
	return vec.Vec2{X: e.X, Y: e.Y}
}

// WorldData описание мира: размеры, корневая сцена, рельеф и входы
type WorldData struct {
	ID                 string         `yaml:"id"`
	Title              string         `yaml:"title"`
	Width              int            `yaml:"width"`
	Height             int            `yaml:"height"`
	RootScene          string         `yaml:"root_scene"`
	ShouldUnloadOnExit bool           `yaml:"unload_on_exit"`
	Terrain            []TerrainPatch `yaml:"terrain"`
	Entrances          []Entrance     `yaml:"entrances"`
}

// Colliders переводит участки рельефа в коллайдеры в мировых единицах.
// Мир без описанного рельефа считается ровной площадкой на базовой высоте.
func (w *WorldData) Colliders() []physics.BoxCollider {
	patches := w.Terrain
	if len(patches) == 0 {
		patches = []TerrainPatch{{X: 0, Y: 0, Width: w.Width, Height: w.Height}}
	}

	out := make([]physics.BoxCollider, 0, len(patches))
	for _, p := range patches {
		out = append(out, physics.BoxCollider{
			MinX: float64(p.X * grid.CellSize),
			MinY: float64(p.Y * grid.CellSize),
			MaxX: float64((p.X + p.Width) * grid.CellSize),
			MaxY: float64((p.Y + p.Height) * grid.CellSize),
			Top:  p.Top,
		})
	}
	return out
}

// Entrance ищет вход по имени
func (w *WorldData) Entrance(id string) (Entrance, bool) {
	for _, e := range w.Entrances {
		if e.ID == id {
			return e, true
		}
	}
	return Entrance{}, false
}

func (w *WorldData) normalize() error {
	if w.ID == "" {
		return fmt.Errorf("мир без id")
	}
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("мир %s: некорректный размер %dx%d", w.ID, w.Width, w.Height)
	}
	for _, e := range w.Entrances {
		if !e.Cell().In(w.Width, w.Height) {
			return fmt.Errorf("мир %s: вход %s вне границ", w.ID, e.ID)
		}
		if e.Rotation != "" {
			if _, err := grid.ParseRotation(e.Rotation); err != nil {
				return fmt.Errorf("мир %s: вход %s: %w", w.ID, e.ID, err)
			}
		}
	}
	return nil
}
