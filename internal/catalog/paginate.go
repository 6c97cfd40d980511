package catalog

import "github.com/trade-engine/catalog-browser/internal/domain"

// DefaultPageSize is the number of items per page.
const DefaultPageSize = 10

// Page is the visible slice of the ordered view.
type Page struct {
	Items      []domain.Item
	Number     int
	Size       int
	TotalPages int
	Total      int
}

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool {
	return p.Number < p.TotalPages
}

// HasPrev reports whether a preceding page exists.
func (p Page) HasPrev() bool {
	return p.Number > 1
}

// TotalPages returns ceil(count/pageSize); zero for an empty view.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return (count + pageSize - 1) / pageSize
}

// Paginate cuts page number page out of items. Pages outside
// [1, TotalPages] yield an empty slice rather than being clamped.
func Paginate(items []domain.Item, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	result := Page{
		Number:     page,
		Size:       pageSize,
		TotalPages: TotalPages(len(items), pageSize),
		Total:      len(items),
	}

	if page < 1 {
		result.Items = []domain.Item{}
		return result
	}

	start := (page - 1) * pageSize
	if start >= len(items) {
		result.Items = []domain.Item{}
		return result
	}
	end := min(page*pageSize, len(items))

	result.Items = items[start:end:end]
	return result
}
