package grid

import "fmt"

// PlacementType происхождение предмета в сетке
type PlacementType uint8

const (
	// Placed предмет поставлен инструментом размещения
	Placed PlacementType = iota
	// Dropped предмет выброшен на землю и всегда занимает одну ячейку
	Dropped
)

// String возвращает имя типа размещения
func (p PlacementType) String() string {
	switch p {
	case Placed:
		return "Placed"
	case Dropped:
		return "Dropped"
	default:
		return fmt.Sprintf("PlacementType(%d)", uint8(p))
	}
}

// MarshalText кодирует тип размещения именем
func (p PlacementType) MarshalText() ([]byte, error) {
	if p > Dropped {
		return nil, fmt.Errorf("некорректный тип размещения %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText декодирует тип размещения из имени
func (p *PlacementType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Placed":
		*p = Placed
	case "Dropped":
		*p = Dropped
	default:
		return fmt.Errorf("неизвестный тип размещения %q", string(text))
	}
	return nil
}
