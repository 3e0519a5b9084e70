// Package storage хранит документы сохранения миров и позиции наблюдателей.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound сохранение отсутствует (мир считается пустым)
	ErrNotFound = errors.New("сохранение не найдено")
	// ErrCorrupt файл сохранения повреждён
	ErrCorrupt = errors.New("сохранение повреждено")
	// ErrClosed хранилище закрыто
	ErrClosed = errors.New("хранилище закрыто")
)

// SaveStore хранит один документ на пару (профиль сохранения, id мира)
type SaveStore interface {
	// Save записывает документ целиком
	Save(ctx context.Context, profile, worldID string, doc *Document) error

	// Load читает документ. Отсутствие документа возвращает ErrNotFound.
	Load(ctx context.Context, profile, worldID string) (*Document, error)

	// Delete удаляет документ
	Delete(ctx context.Context, profile, worldID string) error

	// List перечисляет миры профиля, для которых есть сохранение
	List(ctx context.Context, profile string) ([]string, error)

	// Close освобождает ресурсы
	Close() error
}

// validateName запрещает пустые имена и разделители путей/ключей
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("пустое имя: %s", kind)
	}
	if strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return fmt.Errorf("недопустимое имя %s: %q", kind, name)
	}
	return nil
}

func validateKey(profile, worldID string) error {
	if err := validateName("профиль", profile); err != nil {
		return err
	}
	return validateName("мир", worldID)
}
