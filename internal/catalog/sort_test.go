package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trade-engine/catalog-browser/internal/domain"
)

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortPriceUp, ParseSortKey("PriceUP"))
	assert.Equal(t, SortPriceUp, ParseSortKey("priceup"))
	assert.Equal(t, SortLevelDown, ParseSortKey(" LevelDown "))
	assert.Equal(t, SortDefault, ParseSortKey("Popularity"))
	assert.Equal(t, SortDefault, ParseSortKey(""))
}

func TestSort_Orderings(t *testing.T) {
	items := sampleItems()

	tests := []struct {
		key  SortKey
		want []domain.ItemID
	}{
		{SortDateUp, []domain.ItemID{"4", "1", "3", "2"}},
		{SortDateDown, []domain.ItemID{"2", "3", "1", "4"}},
		{SortDefault, []domain.ItemID{"2", "3", "1", "4"}},
		{SortPriceUp, []domain.ItemID{"1", "3", "4", "2"}},
		{SortPriceDown, []domain.ItemID{"2", "4", "3", "1"}},
		{SortLevelUp, []domain.ItemID{"2", "4", "1", "3"}},
		{SortLevelDown, []domain.ItemID{"1", "3", "4", "2"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, idsOf(Sort(items, tt.key)))
		})
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	items := sampleItems()
	before := idsOf(items)
	Sort(items, SortPriceDown)
	assert.Equal(t, before, idsOf(items))
}

func TestSort_StableOnEqualPrice(t *testing.T) {
	items := []domain.Item{
		item("9", "a", "10", domain.LevelBeginners, "2020-01-01"),
		item("3", "b", "10", domain.LevelBeginners, "2020-01-01"),
		item("5", "c", "5", domain.LevelBeginners, "2020-01-01"),
		item("1", "d", "10.00", domain.LevelBeginners, "2020-01-01"),
	}

	assert.Equal(t, []domain.ItemID{"5", "9", "3", "1"}, idsOf(Sort(items, SortPriceUp)))
	assert.Equal(t, []domain.ItemID{"9", "3", "1", "5"}, idsOf(Sort(items, SortPriceDown)))
	assert.Equal(t, []domain.ItemID{"9", "3", "5", "1"}, idsOf(Sort(items, SortDateUp)))
}

func TestSort_LevelTieBreakByID(t *testing.T) {
	items := []domain.Item{
		item("10", "a", "1", domain.LevelAdvanced, "2020-01-01"),
		item("2", "b", "1", domain.LevelAdvanced, "2020-01-01"),
		item("7", "c", "1", domain.LevelAdvanced, "2020-01-01"),
	}

	want := []domain.ItemID{"2", "7", "10"}
	assert.Equal(t, want, idsOf(Sort(items, SortLevelUp)))
	assert.Equal(t, want, idsOf(Sort(items, SortLevelDown)))
}

func TestSort_UnknownLevelsLast(t *testing.T) {
	items := []domain.Item{
		item("1", "a", "1", domain.Level("Expert"), "2020-01-01"),
		item("2", "b", "1", domain.LevelBeginners, "2020-01-01"),
		item("3", "c", "1", domain.LevelUpperAdvanced, "2020-01-01"),
		item("0", "d", "1", domain.Level(""), "2020-01-01"),
	}

	assert.Equal(t, []domain.ItemID{"3", "2", "0", "1"}, idsOf(Sort(items, SortLevelUp)))
	assert.Equal(t, []domain.ItemID{"2", "3", "0", "1"}, idsOf(Sort(items, SortLevelDown)))
}
