package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem_DecodeMixedFeed(t *testing.T) {
	payload := `[
		{"id": 7, "name": "Go Basics", "price": "19.99", "level": "Beginners", "added_date": "2019-05-12"},
		{"id": "x-9", "name": "Rust", "price": 45, "level": "Advanced", "added_date": "2020-01-02T10:00:00Z"}
	]`

	var items []Item
	require.NoError(t, json.Unmarshal([]byte(payload), &items))
	require.Len(t, items, 2)

	assert.Equal(t, ItemID("7"), items[0].ID)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, time.Date(2019, 5, 12, 0, 0, 0, 0, time.UTC), items[0].AddedDate.Time)

	assert.Equal(t, ItemID("x-9"), items[1].ID)
	assert.True(t, items[1].Price.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, LevelAdvanced, items[1].Level)
}

func TestItem_UnparseableDateIsZero(t *testing.T) {
	var item Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"a","price":1,"added_date":"someday"}`), &item))
	assert.True(t, item.AddedDate.IsZero())
}

func TestItemID_Less(t *testing.T) {
	assert.True(t, ItemID("2").Less("10"), "numeric ids compare as numbers")
	assert.False(t, ItemID("10").Less("2"))
	assert.True(t, ItemID("a").Less("b"))
	assert.False(t, ItemID("5").Less("5"))
	assert.True(t, ItemID("10").Less("1a"), "numeric ids come first")
	assert.False(t, ItemID("1a").Less("2"))
	assert.True(t, ItemID("Inf").Less("NaN"), "non-finite ids compare as text")
}

func TestItemID_MarshalKeepsNumbers(t *testing.T) {
	data, err := json.Marshal(CartEntry{ID: "12", Name: "n", Price: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":12`)

	data, err = json.Marshal(CartEntry{ID: "abc", Name: "n", Price: decimal.NewFromInt(3)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"abc"`)
}

func TestItemID_MarshalKeepsNonCanonicalNumbersAsStrings(t *testing.T) {
	for _, id := range []ItemID{"007", "+5", "NaN", "Inf", "-Inf", "1.", " 3", "true", "0x1F"} {
		data, err := json.Marshal(CartEntry{ID: id, Name: "n", Price: decimal.NewFromInt(1)})
		require.NoError(t, err, "id %q", id)

		var back CartEntry
		require.NoError(t, json.Unmarshal(data, &back), "id %q", id)
		assert.Equal(t, id, back.ID)
	}

	for _, id := range []ItemID{"0", "-4", "1.5", "1e3"} {
		data, err := json.Marshal(id)
		require.NoError(t, err)
		assert.Equal(t, string(id), string(data))
	}
}

func TestLevel_Rank(t *testing.T) {
	for i, level := range Levels() {
		rank, ok := level.Rank()
		assert.True(t, ok)
		assert.Equal(t, i, rank)
	}

	_, ok := Level("Expert").Rank()
	assert.False(t, ok)
}
