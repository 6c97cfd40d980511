package catalog

import (
	"slices"
	"strings"

	"github.com/trade-engine/catalog-browser/internal/domain"
)

// SortKey selects the ordering of the view.
type SortKey string

const (
	SortDefault   SortKey = ""
	SortDateUp    SortKey = "DateUP"
	SortDateDown  SortKey = "DateDOWN"
	SortPriceUp   SortKey = "PriceUP"
	SortPriceDown SortKey = "PriceDOWN"
	SortLevelUp   SortKey = "LevelUP"
	SortLevelDown SortKey = "LevelDOWN"
)

var sortKeys = []SortKey{SortDateUp, SortDateDown, SortPriceUp, SortPriceDown, SortLevelUp, SortLevelDown}

// SortKeys lists the selectable keys.
func SortKeys() []SortKey {
	return slices.Clone(sortKeys)
}

// ParseSortKey matches a selector token case-insensitively. Unknown tokens
// select the default ordering.
func ParseSortKey(token string) SortKey {
	for _, key := range sortKeys {
		if strings.EqualFold(string(key), strings.TrimSpace(token)) {
			return key
		}
	}
	return SortDefault
}

// Sort returns items ordered by key. The input slice is left untouched and
// equal elements keep their input order.
func Sort(items []domain.Item, key SortKey) []domain.Item {
	out := slices.Clone(items)

	var cmp func(a, b domain.Item) int
	switch key {
	case SortDateUp:
		cmp = func(a, b domain.Item) int { return a.AddedDate.Compare(b.AddedDate.Time) }
	case SortPriceUp:
		cmp = func(a, b domain.Item) int { return a.Price.Cmp(b.Price) }
	case SortPriceDown:
		cmp = func(a, b domain.Item) int { return b.Price.Cmp(a.Price) }
	case SortLevelUp:
		// Highest level first.
		cmp = func(a, b domain.Item) int { return compareLevels(a, b, true) }
	case SortLevelDown:
		cmp = func(a, b domain.Item) int { return compareLevels(a, b, false) }
	default:
		cmp = func(a, b domain.Item) int { return b.AddedDate.Compare(a.AddedDate.Time) }
	}

	slices.SortStableFunc(out, cmp)
	return out
}

// compareLevels orders by level rank, unknown levels last in either direction,
// then by ascending id.
func compareLevels(a, b domain.Item, descending bool) int {
	rankA, okA := a.Level.Rank()
	rankB, okB := b.Level.Rank()

	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case okA && okB && rankA != rankB:
		if descending {
			return rankB - rankA
		}
		return rankA - rankB
	}

	return a.ID.Compare(b.ID)
}
