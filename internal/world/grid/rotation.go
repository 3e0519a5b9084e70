package grid

import (
	"fmt"
	"strings"
)

// Rotation одно из четырёх сторон света
type Rotation uint8

const (
	North Rotation = iota
	East
	South
	West
)

var rotationNames = [...]string{"North", "East", "South", "West"}

// String возвращает имя направления
func (r Rotation) String() string {
	if int(r) < len(rotationNames) {
		return rotationNames[r]
	}
	return fmt.Sprintf("Rotation(%d)", uint8(r))
}

// Valid проверяет, что значение входит в перечисление
func (r Rotation) Valid() bool {
	return r <= West
}

// Yaw угол поворота сущности в градусах
func (r Rotation) Yaw() float64 {
	return float64(r%4) * 90
}

// ParseRotation разбирает имя направления без учёта регистра
func ParseRotation(s string) (Rotation, error) {
	for i, name := range rotationNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Rotation(i), nil
		}
	}
	return 0, fmt.Errorf("неизвестное направление %q", s)
}

// MarshalText кодирует направление именем (формат файла сохранения)
func (r Rotation) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("некорректное направление %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText декодирует направление из имени
func (r *Rotation) UnmarshalText(text []byte) error {
	parsed, err := ParseRotation(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
