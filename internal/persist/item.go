// Package persist содержит непрозрачную полезную нагрузку сохранения,
// прикреплённую к каждому обитателю сетки. Движок не интерпретирует значения:
// они хранятся как JSON и восстанавливаются побайтно.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrNoKey ключ отсутствует в полезной нагрузке
var ErrNoKey = errors.New("ключ не найден")

// Item набор произвольных данных обитателя: ключ → JSON значение
type Item struct {
	data map[string]json.RawMessage
}

// NewItem создаёт пустую полезную нагрузку
func NewItem() *Item {
	return &Item{data: make(map[string]json.RawMessage)}
}

// SetArbitraryData сохраняет значение под ключом
func (it *Item) SetArbitraryData(key string, value interface{}) error {
	raw, err := Encode(value)
	if err != nil {
		return fmt.Errorf("persist: ключ %q: %w", key, err)
	}
	it.ensure()
	it.data[key] = raw
	return nil
}

// SetRaw сохраняет уже сериализованное значение. Пробелы вне строк
// удаляются, остальное хранится как есть.
func (it *Item) SetRaw(key string, raw json.RawMessage) {
	it.ensure()
	it.data[key] = compactRaw(raw)
}

// Raw возвращает сериализованное значение
func (it *Item) Raw(key string) (json.RawMessage, bool) {
	if it == nil {
		return nil, false
	}
	raw, ok := it.data[key]
	return raw, ok
}

// Has проверяет наличие ключа
func (it *Item) Has(key string) bool {
	_, ok := it.Raw(key)
	return ok
}

// Delete удаляет ключ
func (it *Item) Delete(key string) {
	if it != nil {
		delete(it.data, key)
	}
}

// Keys возвращает отсортированный список ключей
func (it *Item) Keys() []string {
	if it == nil {
		return nil
	}
	keys := make([]string, 0, len(it.data))
	for k := range it.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len количество ключей
func (it *Item) Len() int {
	if it == nil {
		return 0
	}
	return len(it.data)
}

// Clone создаёт независимую копию
func (it *Item) Clone() *Item {
	out := NewItem()
	if it == nil {
		return out
	}
	for k, v := range it.data {
		out.data[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Equal сравнивает две полезные нагрузки побайтно
func (it *Item) Equal(other *Item) bool {
	if it.Len() != other.Len() {
		return false
	}
	for _, k := range it.Keys() {
		b, ok := other.Raw(k)
		if !ok {
			return false
		}
		a, _ := it.Raw(k)
		if !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

// MarshalJSON кодирует полезную нагрузку как JSON-объект. Ключи
// сортируются, значения пишутся без изменений: json.Marshal экранировал
// бы <, > и & внутри сырых строк.
func (it *Item) MarshalJSON() ([]byte, error) {
	if it == nil || len(it.data) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range it.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := Encode(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(it.data[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode сериализует v в компактный JSON без HTML-экранирования.
// Всё, что несёт полезную нагрузку (документ сохранения, конверты шины),
// кодируется через Encode или EncodeIndent, иначе байты значений меняются.
func Encode(v interface{}) ([]byte, error) {
	return EncodeIndent(v, "")
}

// EncodeIndent то же, что Encode, с отступом indent
func EncodeIndent(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON восстанавливает полезную нагрузку из JSON-объекта
func (it *Item) UnmarshalJSON(b []byte) error {
	data := make(map[string]json.RawMessage)
	if !bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		if err := json.Unmarshal(b, &data); err != nil {
			return err
		}
	}
	// Файл сохранения пишется с отступами; значения храним в компактной форме
	for k, v := range data {
		data[k] = compactRaw(v)
	}
	it.data = data
	return nil
}

func (it *Item) ensure() {
	if it.data == nil {
		it.data = make(map[string]json.RawMessage)
	}
}

// GetArbitraryData декодирует значение ключа в T
func GetArbitraryData[T any](it *Item, key string) (T, error) {
	var zero T
	raw, ok := it.Raw(key)
	if !ok {
		return zero, fmt.Errorf("persist: %q: %w", key, ErrNoKey)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("persist: ключ %q: %w", key, err)
	}
	return out, nil
}

// GetArbitraryDataOr возвращает значение ключа или fallback при отсутствии/ошибке
func GetArbitraryDataOr[T any](it *Item, key string, fallback T) T {
	v, err := GetArbitraryData[T](it, key)
	if err != nil {
		return fallback
	}
	return v
}

func compactRaw(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return json.RawMessage(buf.Bytes())
}
