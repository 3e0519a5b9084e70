package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/meadow-world/internal/persist"
	"github.com/annel0/meadow-world/internal/vec"
	"github.com/annel0/meadow-world/internal/world/grid"
)

// Record плоская запись одного обитателя сетки в файле сохранения
type Record struct {
	Position      vec.Vec2           `json:"Position"`
	Rotation      grid.Rotation      `json:"Rotation"`
	Category      grid.Category      `json:"Category,omitempty"`
	PlacementType grid.PlacementType `json:"PlacementType"`
	PrefabPath    string             `json:"PrefabPath"`
	ItemID        string             `json:"ItemId"`
	Item          *persist.Item      `json:"Item"`
}

// Document содержимое файла сохранения одного мира
type Document struct {
	LastSave time.Time `json:"LastSave"`
	Items    []Record  `json:"Items"`
}

// EncodeDocument сериализует документ сохранения
func EncodeDocument(doc *Document) ([]byte, error) {
	if doc.Items == nil {
		doc.Items = []Record{}
	}
	data, err := persist.EncodeIndent(doc, "  ")
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации сохранения: %w", err)
	}
	return data, nil
}

// DecodeDocument разбирает документ сохранения. Любая ошибка разбора
// оборачивает ErrCorrupt: повреждённый файл не восстанавливается частично.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i := range doc.Items {
		if doc.Items[i].Item == nil {
			doc.Items[i].Item = persist.NewItem()
		}
	}
	return &doc, nil
}
