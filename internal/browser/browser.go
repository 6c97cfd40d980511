package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trade-engine/catalog-browser/internal/cart"
	"github.com/trade-engine/catalog-browser/internal/catalog"
	"github.com/trade-engine/catalog-browser/internal/currency"
	"github.com/trade-engine/catalog-browser/internal/detail"
	"github.com/trade-engine/catalog-browser/internal/dialog"
	"github.com/trade-engine/catalog-browser/internal/domain"
	"github.com/trade-engine/catalog-browser/internal/metadata"
	arrowsink "github.com/trade-engine/catalog-browser/internal/sink/arrow"
)

const (
	endpointCatalog = "catalog"
	endpointRates   = "rates"
)

var (
	ErrClosed        = errors.New("browser closed")
	ErrUnknownItem   = errors.New("item not in catalog")
	ErrAlreadyInCart = errors.New("item already in cart")
	ErrNotVisible    = errors.New("item not on the current page")
	ErrNoExporter    = errors.New("no snapshot exporter configured")
)

var (
	restorePrompt = dialog.Prompt{
		Title:    "Your cart isn't empty!!",
		Text:     "Do you want to reset it?",
		Severity: dialog.SeverityWarning,
	}
	resetPrompt = dialog.Prompt{
		Title:    "Reset cart?",
		Text:     "All items will be removed from your cart.",
		Severity: dialog.SeverityWarning,
	}
)

// Fetcher supplies both remote sources.
type Fetcher interface {
	catalog.Fetcher
	currency.RatesFetcher
}

type Options struct {
	PageSize          int
	ResetPageOnSearch bool
	ExportDir         string
}

// Deps are the collaborators a Browser drives. FetchState and Exporter are
// optional.
type Deps struct {
	Fetcher    Fetcher
	Rates      *currency.Table
	Cart       *cart.Manager
	FetchState *metadata.FetchState
	Exporter   *arrowsink.SnapshotWriter
}

// LoadResult reports how the initial fetches settled.
type LoadResult struct {
	CatalogErr error
	RatesErr   error
	// Restored is set when a persisted cart was read back.
	Restored bool
	// Reset is set when the user emptied the restored cart.
	Reset bool
}

// Browser ties the catalog, the rate table, the cart and the detail panels
// into one page. All methods are safe for concurrent use.
type Browser struct {
	mu     sync.Mutex
	state  catalog.State
	panels map[domain.ItemID]*itemPanel

	fetcher    Fetcher
	store      *catalog.Store
	rates      *currency.Table
	cart       *cart.Manager
	detail     *detail.Coordinator
	fetchState *metadata.FetchState
	exporter   *arrowsink.SnapshotWriter

	opts    Options
	started atomic.Bool
	closed  atomic.Bool
	logger  *zap.Logger
}

func New(deps Deps, opts Options, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = catalog.DefaultPageSize
	}
	logger = logger.With(zap.String("session", uuid.NewString()))

	return &Browser{
		state:      catalog.NewState(),
		panels:     make(map[domain.ItemID]*itemPanel),
		fetcher:    deps.Fetcher,
		store:      catalog.NewStore(logger),
		rates:      deps.Rates,
		cart:       deps.Cart,
		detail:     detail.NewCoordinator(logger),
		fetchState: deps.FetchState,
		exporter:   deps.Exporter,
		opts:       opts,
		logger:     logger,
	}
}

// Load fetches the catalog and the rates concurrently and waits for both to
// settle. Only then, and only if the catalog loaded, a persisted cart is
// restored and the user is asked whether to reset it. Fetch failures are
// reported in the result, never as an error.
func (b *Browser) Load(ctx context.Context) (LoadResult, error) {
	if b.closed.Load() {
		return LoadResult{}, ErrClosed
	}
	if b.started.Swap(true) {
		return LoadResult{}, catalog.ErrAlreadyLoaded
	}

	var res LoadResult
	var g errgroup.Group
	g.Go(func() error {
		res.CatalogErr = b.store.Load(ctx, b.fetcher)
		return nil
	})
	g.Go(func() error {
		res.RatesErr = b.rates.Load(ctx, b.fetcher)
		return nil
	})
	_ = g.Wait()

	if b.closed.Load() {
		b.logger.Debug("Discarding load results after close")
		return res, ErrClosed
	}

	b.recordFetch(endpointCatalog, res.CatalogErr)
	b.recordFetch(endpointRates, res.RatesErr)

	if res.CatalogErr != nil {
		return res, nil
	}

	has, err := b.cart.Persisted(ctx)
	if err != nil {
		b.logger.Warn("Could not check for a saved cart", zap.Error(err))
		return res, nil
	}
	if !has {
		return res, nil
	}

	res.Restored, err = b.cart.Restore(ctx)
	if err != nil || !res.Restored {
		return res, nil
	}

	res.Reset, err = b.cart.ConfirmReset(ctx, restorePrompt)
	if err != nil {
		b.logger.Warn("Cart reset prompt failed", zap.Error(err))
	}
	return res, nil
}

func (b *Browser) recordFetch(endpoint string, err error) {
	if b.fetchState == nil {
		return
	}
	b.fetchState.Record(endpoint, err, time.Now())
}

// Search filters the catalog by name.
func (b *Browser) Search(query string) {
	b.Apply(catalog.Patch{Query: &query})
}

// Apply merges p into the page state. A changed query re-filters the catalog.
func (b *Browser) Apply(p catalog.Patch) catalog.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return b.state
	}

	prev := b.state
	b.state = prev.Apply(p, b.opts.ResetPageOnSearch)
	if b.state.Query != prev.Query {
		b.store.Search(b.state.Query)
	}
	return b.state
}

// State returns the current page state.
func (b *Browser) State() catalog.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// AddToCart adds the catalog item with id. An item already in the cart is
// refused.
func (b *Browser) AddToCart(id domain.ItemID) error {
	if b.closed.Load() {
		return ErrClosed
	}
	item, ok := b.store.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	if b.cart.Contains(id) {
		return fmt.Errorf("%w: %s", ErrAlreadyInCart, id)
	}
	b.cart.Add(item)
	return nil
}

// RemoveFromCart drops every cart entry with id and returns how many went.
func (b *Browser) RemoveFromCart(id domain.ItemID) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.cart.Remove(id), nil
}

// ResetCart asks the user before emptying the cart. It reports whether the
// cart was cleared.
func (b *Browser) ResetCart(ctx context.Context) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}
	return b.cart.ConfirmReset(ctx, resetPrompt)
}

// ToggleDetail opens or closes the description panel of a visible item.
func (b *Browser) ToggleDetail(id domain.ItemID) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	page := b.currentPageLocked()
	visible := make(map[domain.ItemID]bool, len(page.Items))
	for _, item := range page.Items {
		visible[item.ID] = true
	}
	if !visible[id] {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotVisible, id)
	}
	for pid, p := range b.panels {
		p.mounted.Store(visible[pid])
	}
	panel := b.panelLocked(id)
	panel.mounted.Store(true)
	b.mu.Unlock()

	b.detail.Toggle(panel)
	return nil
}

// OpenDetail returns the item whose panel is open, if any.
func (b *Browser) OpenDetail() (domain.ItemID, bool) {
	open, ok := b.detail.Open().(*itemPanel)
	if !ok || open == nil {
		return "", false
	}
	return open.id, true
}

func (b *Browser) panelLocked(id domain.ItemID) *itemPanel {
	p, ok := b.panels[id]
	if !ok {
		p = &itemPanel{id: id}
		b.panels[id] = p
	}
	return p
}

// Export writes the whole sorted view, not only the current page, as an Arrow
// snapshot under dir, or under the configured export directory when dir is
// empty.
func (b *Browser) Export(dir string) (string, error) {
	if b.closed.Load() {
		return "", ErrClosed
	}
	if b.exporter == nil {
		return "", ErrNoExporter
	}
	if dir == "" {
		dir = b.opts.ExportDir
	}

	b.mu.Lock()
	state := b.state
	sorted := catalog.Sort(b.store.View(), state.SortKey)
	b.mu.Unlock()

	rows := make([]arrowsink.Row, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, arrowsink.Row{
			ID:           string(item.ID),
			Name:         item.Name,
			Level:        string(item.Level),
			AddedDate:    item.AddedDate.Time,
			Price:        item.Price.String(),
			DisplayPrice: b.rates.Format(item.Price, state.Currency),
			InCart:       b.cart.Contains(item.ID),
		})
	}

	path, err := b.exporter.Write(dir, arrowsink.SnapshotInfo{
		Query:    state.Query,
		SortKey:  string(state.SortKey),
		Currency: state.Currency,
	}, rows)
	if err != nil {
		return "", fmt.Errorf("export view: %w", err)
	}
	return path, nil
}

// Close stops the browser. Pending cart writes are drained and fetch results
// that arrive later are discarded.
func (b *Browser) Close() {
	if b.closed.Swap(true) {
		return
	}
	if open := b.detail.Open(); open != nil {
		b.detail.Forget(open)
	}
	b.cart.Close()
	b.logger.Info("Browser closed")
}

// itemPanel is the description panel of one item. It is mounted while its
// item is on the current page.
type itemPanel struct {
	id      domain.ItemID
	mounted atomic.Bool
}

func (p *itemPanel) Close() error {
	if !p.mounted.Load() {
		return detail.ErrStaleHandle
	}
	return nil
}
