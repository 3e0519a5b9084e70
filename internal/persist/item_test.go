package persist

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chestState struct {
	Slots []string `json:"slots"`
	Open  bool     `json:"open"`
}

func TestArbitraryData(t *testing.T) {
	it := NewItem()
	require.NoError(t, it.SetArbitraryData("growth", 3))
	require.NoError(t, it.SetArbitraryData("chest", chestState{Slots: []string{"seed", ""}, Open: true}))

	growth, err := GetArbitraryData[int](it, "growth")
	require.NoError(t, err)
	assert.Equal(t, 3, growth)

	chest, err := GetArbitraryData[chestState](it, "chest")
	require.NoError(t, err)
	assert.Equal(t, []string{"seed", ""}, chest.Slots)

	_, err = GetArbitraryData[int](it, "missing")
	assert.True(t, errors.Is(err, ErrNoKey))

	_, err = GetArbitraryData[int](it, "chest")
	assert.Error(t, err, "несовместимый тип")

	assert.Equal(t, 7, GetArbitraryDataOr(it, "missing", 7))
	assert.Equal(t, []string{"chest", "growth"}, it.Keys())
}

func TestJSONPreservesBytes(t *testing.T) {
	it := NewItem()
	it.SetRaw("weird", json.RawMessage(`{"b":1,"a":[1,2,3]}`))
	require.NoError(t, it.SetArbitraryData("name", "Clover <3"))

	first, err := Encode(it)
	require.NoError(t, err)

	var back Item
	require.NoError(t, json.Unmarshal(first, &back))
	assert.True(t, it.Equal(&back))

	second, err := Encode(&back)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	raw, ok := back.Raw("weird")
	require.True(t, ok)
	assert.Equal(t, `{"b":1,"a":[1,2,3]}`, string(raw))
}

func TestCloneIsIndependent(t *testing.T) {
	it := NewItem()
	require.NoError(t, it.SetArbitraryData("k", 1))

	cp := it.Clone()
	require.NoError(t, cp.SetArbitraryData("k", 2))

	assert.Equal(t, 1, GetArbitraryDataOr(it, "k", 0))
	assert.False(t, it.Equal(cp))
}

func TestNullAndEmpty(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`null`), &it))
	assert.Equal(t, 0, it.Len())

	data, err := json.Marshal(NewItem())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestIndentedDocumentKeepsBytes(t *testing.T) {
	it := NewItem()
	require.NoError(t, it.SetArbitraryData("wear", map[string]float64{"seat": 0.25}))
	it.SetRaw("odd", json.RawMessage(`[1, 2.50, "x"]`))

	doc, err := json.MarshalIndent(map[string]*Item{"Item": it}, "", "  ")
	require.NoError(t, err)

	var back map[string]*Item
	require.NoError(t, json.Unmarshal(doc, &back))

	assert.True(t, it.Equal(back["Item"]))
	raw, _ := back["Item"].Raw("odd")
	assert.Equal(t, `[1,2.50,"x"]`, string(raw))
}

func TestHTMLCharactersRoundTrip(t *testing.T) {
	it := NewItem()
	it.SetRaw("label", json.RawMessage(`"a<b&c>"`))
	require.NoError(t, it.SetArbitraryData("note", "x > y & z"))

	data, err := it.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"label":"a<b&c>","note":"x > y & z"}`, string(data))

	wrapped, err := EncodeIndent(map[string]*Item{"Item": it}, "  ")
	require.NoError(t, err)
	assert.NotContains(t, string(wrapped), `\u003c`)
	assert.NotContains(t, string(wrapped), `\u0026`)

	var back map[string]*Item
	require.NoError(t, json.Unmarshal(wrapped, &back))
	require.True(t, it.Equal(back["Item"]))

	raw, ok := back["Item"].Raw("label")
	require.True(t, ok)
	assert.Equal(t, `"a<b&c>"`, string(raw))
	assert.Equal(t, "x > y & z", GetArbitraryDataOr(back["Item"], "note", ""))
}
