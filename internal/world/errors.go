package world

import (
	"errors"
	"fmt"

	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// Ошибки недопустимых запросов. Вызывающий показывает их игроку и
// отказывается от операции; повторов нет.
var (
	ErrOutOfBounds        = errors.New("ячейка вне границ мира")
	ErrCategoryNotAllowed = errors.New("категория не разрешена для предмета")
	ErrInvalidRotation    = errors.New("некорректное направление")
	ErrOccupied           = errors.New("ячейка занята")
	ErrTerrainBlocked     = errors.New("рельеф не позволяет строить")
	ErrMissingScene       = errors.New("у предмета нет сцены")
	ErrUnknownItem        = errors.New("неизвестный предмет")
	ErrNotAuthoritative   = errors.New("узел не авторитетен")
	ErrNotPlaced          = errors.New("связь не размещена в мире")
	ErrCorruptSave        = errors.New("файл сохранения повреждён")
	ErrNoStore            = errors.New("хранилище сохранений не настроено")
)

// PlacementError отказ в размещении с указанием ячейки и категории
type PlacementError struct {
	Cell     vec.Vec2
	Category grid.Category
	Err      error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("размещение %s в %s: %v", e.Category, e.Cell, e.Err)
}

func (e *PlacementError) Unwrap() error {
	return e.Err
}

func placementErr(cell vec.Vec2, c grid.Category, err error) error {
	return &PlacementError{Cell: cell, Category: c, Err: err}
}
