package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.schema.json
var schemaSource string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func fileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("catalog.schema.json", schemaSource)
	})
	return compiledSchema, schemaErr
}

// ValidateYAML проверяет файл каталога по JSON-схеме до разбора в структуры.
// Опечатки в ключах (например categories вместо placements) не проходят.
func ValidateYAML(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		// Пустой файл
		return nil
	}

	// Схема работает с JSON-значениями: числа как json.Number
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("каталог не приводится к JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return err
	}

	schema, err := fileSchema()
	if err != nil {
		return fmt.Errorf("схема каталога: %w", err)
	}
	return schema.Validate(doc)
}
