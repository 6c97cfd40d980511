package browser

import (
	"github.com/trade-engine/catalog-browser/internal/catalog"
	"github.com/trade-engine/catalog-browser/internal/currency"
	"github.com/trade-engine/catalog-browser/internal/domain"
)

// Row is one visible catalog item with everything needed to draw it.
type Row struct {
	Item         domain.Item
	DisplayPrice string
	InCart       bool
	Open         bool
}

// PageView is the derived state of the page.
type PageView struct {
	State      catalog.State
	Status     catalog.Status
	Message    string
	Rows       []Row
	Number     int
	TotalPages int
	Total      int
	HasNext    bool
	HasPrev    bool
	// Currencies lists the selector choices, NoConversion first. Only the
	// sentinel is offered when the rate table is absent.
	Currencies []string
}

// CartLine is one cart entry priced in the selected currency.
type CartLine struct {
	Entry        domain.CartEntry
	DisplayPrice string
}

type CartView struct {
	Lines []CartLine
	Total string
}

// Page derives the visible slice: filtered view, sorted, then paginated.
func (b *Browser) Page() PageView {
	b.mu.Lock()
	state := b.state
	page := b.currentPageLocked()
	b.mu.Unlock()

	openID, hasOpen := b.OpenDetail()

	rows := make([]Row, 0, len(page.Items))
	for _, item := range page.Items {
		rows = append(rows, Row{
			Item:         item,
			DisplayPrice: b.rates.Format(item.Price, state.Currency),
			InCart:       b.cart.Contains(item.ID),
			Open:         hasOpen && openID == item.ID,
		})
	}

	return PageView{
		State:      state,
		Status:     b.store.Status(),
		Message:    b.store.Message(),
		Rows:       rows,
		Number:     page.Number,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		HasNext:    page.HasNext(),
		HasPrev:    page.HasPrev(),
		Currencies: append([]string{currency.NoConversion}, b.rates.Codes()...),
	}
}

func (b *Browser) currentPageLocked() catalog.Page {
	sorted := catalog.Sort(b.store.View(), b.state.SortKey)
	return catalog.Paginate(sorted, b.state.CurrentPage, b.opts.PageSize)
}

// Cart returns the cart priced in the selected currency.
func (b *Browser) Cart() CartView {
	code := b.State().Currency

	entries := b.cart.Entries()
	lines := make([]CartLine, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, CartLine{
			Entry:        e,
			DisplayPrice: b.rates.Format(e.Price, code),
		})
	}
	return CartView{
		Lines: lines,
		Total: b.rates.Format(b.cart.Total(), code),
	}
}
