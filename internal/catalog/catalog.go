// Package catalog хранит описания предметов и миров (ItemData, WorldData).
// Движок мира только читает каталог.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound запрошенная запись отсутствует в каталоге
var ErrNotFound = errors.New("нет в каталоге")

// Catalog реестр предметов и миров
type Catalog struct {
	mu     sync.RWMutex
	items  map[string]*ItemData
	worlds map[string]*WorldData
}

// New создаёт пустой каталог
func New() *Catalog {
	return &Catalog{
		items:  make(map[string]*ItemData),
		worlds: make(map[string]*WorldData),
	}
}

// RegisterItem добавляет или заменяет описание предмета
func (c *Catalog) RegisterItem(item *ItemData) error {
	if err := item.normalize(); err != nil {
		return err
	}
	c.mu.Lock()
	c.items[item.ID] = item
	c.mu.Unlock()
	return nil
}

// RegisterWorld добавляет или заменяет описание мира
func (c *Catalog) RegisterWorld(w *WorldData) error {
	if err := w.normalize(); err != nil {
		return err
	}
	c.mu.Lock()
	c.worlds[w.ID] = w
	c.mu.Unlock()
	return nil
}

// Item возвращает описание предмета
func (c *Catalog) Item(id string) (*ItemData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return nil, fmt.Errorf("предмет %q: %w", id, ErrNotFound)
	}
	return item, nil
}

// World возвращает описание мира
func (c *Catalog) World(id string) (*WorldData, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w, ok := c.worlds[id]
	if !ok {
		return nil, fmt.Errorf("мир %q: %w", id, ErrNotFound)
	}
	return w, nil
}

// ItemIDs возвращает отсортированный список предметов
func (c *Catalog) ItemIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WorldIDs возвращает отсортированный список миров
func (c *Catalog) WorldIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.worlds))
	for id := range c.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// file формат YAML-файла каталога; один файл может описывать и предметы, и миры
type file struct {
	Items  []*ItemData  `yaml:"items"`
	Worlds []*WorldData `yaml:"worlds"`
}

// LoadDir читает все *.yaml/*.yml в каталоге (рекурсивно).
// Отсутствие каталога возвращает ошибку os.ErrNotExist.
func (c *Catalog) LoadDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return err
	}

	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		return c.LoadFile(path)
	})
}

// LoadFile читает один YAML-файл каталога
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.LoadYAML(data, path)
}

// LoadYAML разбирает содержимое файла каталога; source используется в ошибках
func (c *Catalog) LoadYAML(data []byte, source string) error {
	if err := ValidateYAML(data); err != nil {
		return fmt.Errorf("каталог %s: %w", source, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("каталог %s: %w", source, err)
	}

	for _, item := range f.Items {
		if err := c.RegisterItem(item); err != nil {
			return fmt.Errorf("каталог %s: %w", source, err)
		}
	}
	for _, w := range f.Worlds {
		if err := c.RegisterWorld(w); err != nil {
			return fmt.Errorf("каталог %s: %w", source, err)
		}
	}
	return nil
}
