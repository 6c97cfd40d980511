package catalog

import "github.com/trade-engine/catalog-browser/internal/currency"

// State is the user-controlled part of the page: query, ordering, page and
// display currency.
type State struct {
	Query       string
	SortKey     SortKey
	CurrentPage int
	Currency    string
}

// NewState returns the initial page state.
func NewState() State {
	return State{
		SortKey:     SortDefault,
		CurrentPage: 1,
		Currency:    currency.NoConversion,
	}
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Query       *string
	SortKey     *SortKey
	CurrentPage *int
	Currency    *string
}

// Apply returns the state with the patch applied. When resetPage is set, a
// changed query sends the user back to page 1.
func (s State) Apply(p Patch, resetPage bool) State {
	next := s
	if p.Query != nil && *p.Query != s.Query {
		next.Query = *p.Query
		if resetPage {
			next.CurrentPage = 1
		}
	}
	if p.SortKey != nil {
		next.SortKey = *p.SortKey
	}
	if p.CurrentPage != nil {
		next.CurrentPage = *p.CurrentPage
	}
	if p.Currency != nil {
		next.Currency = *p.Currency
	}
	return next
}

// Clamp returns the state with CurrentPage forced into [1, totalPages].
func (s State) Clamp(totalPages int) State {
	next := s
	if next.CurrentPage > totalPages {
		next.CurrentPage = totalPages
	}
	if next.CurrentPage < 1 {
		next.CurrentPage = 1
	}
	return next
}
