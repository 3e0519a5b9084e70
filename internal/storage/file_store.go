package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore хранит каждый мир в отдельном JSON-файле:
// <base>/<profile>/<worldID>.json
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore создаёт файловое хранилище
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Path возвращает путь к файлу сохранения мира
func (fs *FileStore) Path(profile, worldID string) string {
	return filepath.Join(fs.basePath, profile, worldID+".json")
}

// Save атомарно перезаписывает файл сохранения
func (fs *FileStore) Save(ctx context.Context, profile, worldID string, doc *Document) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeDocument(doc)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Join(fs.basePath, profile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию профиля %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, worldID+".*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи сохранения %s: %w", worldID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи сохранения %s: %w", worldID, err)
	}
	if err := os.Rename(tmpName, fs.Path(profile, worldID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка замены файла сохранения %s: %w", worldID, err)
	}
	return nil
}

// Load читает файл сохранения; отсутствующий файл даёт ErrNotFound
func (fs *FileStore) Load(ctx context.Context, profile, worldID string) (*Document, error) {
	if err := validateKey(profile, worldID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	data, err := os.ReadFile(fs.Path(profile, worldID))
	fs.mu.RUnlock()

	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сохранения %s/%s: %w", profile, worldID, err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", profile, worldID, err)
	}
	return doc, nil
}

// Delete удаляет файл сохранения
func (fs *FileStore) Delete(ctx context.Context, profile, worldID string) error {
	if err := validateKey(profile, worldID); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.Path(profile, worldID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления сохранения %s/%s: %w", profile, worldID, err)
	}
	return nil
}

// List перечисляет сохранённые миры профиля
func (fs *FileStore) List(ctx context.Context, profile string) ([]string, error) {
	if err := validateName("профиль", profile); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	entries, err := os.ReadDir(filepath.Join(fs.basePath, profile))
	fs.mu.RUnlock()

	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close ничего не делает: файлы не держатся открытыми
func (fs *FileStore) Close() error {
	return nil
}
