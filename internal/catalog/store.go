package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/trade-engine/catalog-browser/internal/domain"
)

const (
	// MessageNoResults is shown when the view is empty after a successful load.
	MessageNoResults = "No results"
	// MessageUnavailable is shown when the catalog could not be fetched.
	MessageUnavailable = "Can't load items data, please try again later"
)

// ErrAlreadyLoaded is returned when Load is called a second time.
var ErrAlreadyLoaded = errors.New("catalog already loaded")

// Fetcher retrieves the full catalog.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]domain.Item, error)
}

// Status tells the renderer what to draw in the list area.
type Status int

const (
	StatusLoading Status = iota
	StatusEmpty
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusEmpty:
		return "empty"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Store holds the full catalog and the filtered view derived from it.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	catalog []domain.Item
	view    []domain.Item
	message string
	loading bool
	loaded  bool
	failed  bool
	folder  cases.Caser
}

// NewStore creates an empty store in the loading state.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:  logger,
		message: MessageNoResults,
		loading: true,
		folder:  cases.Fold(),
	}
}

// Load fetches the catalog exactly once. A fetch failure is recorded as the
// display message and returned for bookkeeping; the store stays usable.
func (s *Store) Load(ctx context.Context, fetcher Fetcher) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	s.loaded = true
	s.mu.Unlock()

	items, err := fetcher.FetchCatalog(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	if err != nil {
		s.catalog = nil
		s.view = nil
		s.failed = true
		s.message = MessageUnavailable
		s.logger.Error("Failed to load catalog", zap.Error(err))
		return fmt.Errorf("load catalog: %w", err)
	}

	s.catalog = items
	s.view = append([]domain.Item(nil), items...)
	s.logger.Info("Catalog loaded", zap.Int("items", len(items)))
	return nil
}

// Search replaces the view with the catalog items whose name contains query,
// ignoring case. An empty query restores the full catalog.
func (s *Store) Search(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if query == "" {
		s.view = append([]domain.Item(nil), s.catalog...)
		return
	}

	needle := s.folder.String(query)
	view := make([]domain.Item, 0, len(s.catalog))
	for _, item := range s.catalog {
		if strings.Contains(s.folder.String(item.Name), needle) {
			view = append(view, item)
		}
	}
	s.view = view

	s.logger.Debug("Catalog searched",
		zap.String("query", query),
		zap.Int("matches", len(view)))
}

// View returns a copy of the current filtered view.
func (s *Store) View() []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Item(nil), s.view...)
}

// Lookup finds an item of the full catalog by id.
func (s *Store) Lookup(id domain.ItemID) (domain.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.catalog {
		if item.ID == id {
			return item, true
		}
	}
	return domain.Item{}, false
}

// Message returns the display message for an empty list.
func (s *Store) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// Loading is true until the first Load settles.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Failed reports whether the catalog fetch failed.
func (s *Store) Failed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// Status reports whether to show a spinner, the message, or the list.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.loading:
		return StatusLoading
	case len(s.view) == 0:
		return StatusEmpty
	default:
		return StatusReady
	}
}
