package grid

import (
	"fmt"
	"strings"
)

// Category определяет независимый слот занятости внутри ячейки.
// Значения являются битовыми флагами: маска разрешённых категорий предмета
// хранится в одном числе.
type Category uint8

const (
	Wall Category = 1 << iota
	OnTop
	Floor
	Underground
	FloorDecal
)

// AllCategories перечисляет категории в порядке обхода слотов ячейки
var AllCategories = []Category{Wall, OnTop, Floor, Underground, FloorDecal}

// String возвращает имя категории
func (c Category) String() string {
	switch c {
	case Wall:
		return "Wall"
	case OnTop:
		return "OnTop"
	case Floor:
		return "Floor"
	case Underground:
		return "Underground"
	case FloorDecal:
		return "FloorDecal"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Valid сообщает, что значение является ровно одной известной категорией
func (c Category) Valid() bool {
	switch c {
	case Wall, OnTop, Floor, Underground, FloorDecal:
		return true
	}
	return false
}

// ParseCategory разбирает имя категории без учёта регистра
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if strings.EqualFold(c.String(), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("неизвестная категория размещения %q", s)
}

// MarshalText кодирует категорию именем
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("некорректная категория %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText декодирует категорию из имени
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Mask набор разрешённых категорий
type Mask uint8

// MaskOf собирает маску из списка категорий
func MaskOf(categories ...Category) Mask {
	var m Mask
	for _, c := range categories {
		m |= Mask(c)
	}
	return m
}

// Has проверяет наличие категории в маске
func (m Mask) Has(c Category) bool {
	return m&Mask(c) != 0
}

// Categories возвращает категории маски в порядке AllCategories
func (m Mask) Categories() []Category {
	out := make([]Category, 0, len(AllCategories))
	for _, c := range AllCategories {
		if m.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
