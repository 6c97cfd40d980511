package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trade-engine/catalog-browser/internal/dialog"
	"github.com/trade-engine/catalog-browser/internal/domain"
	"github.com/trade-engine/catalog-browser/internal/storage"
)

// DefaultKey is the storage key the cart is persisted under.
const DefaultKey = "cart"

// Confirmer asks the user before a destructive cart action.
type Confirmer interface {
	Confirm(ctx context.Context, p dialog.Prompt) (bool, error)
	NotifySuccess(ctx context.Context) error
}

// Options tunes persistence behavior.
type Options struct {
	// Key is the storage key; DefaultKey when empty.
	Key string
	// WipeAllOnReset clears the whole store on a confirmed reset instead of
	// only the cart key.
	WipeAllOnReset bool
}

// Manager owns the cart contents. Every mutation is committed in memory
// first and then queued for persistence.
type Manager struct {
	mu        sync.Mutex
	entries   []domain.CartEntry
	store     storage.Store
	confirmer Confirmer
	opts      Options
	queue     *writeQueue
	logger    *zap.Logger
}

// NewManager creates an empty cart backed by store.
func NewManager(store storage.Store, confirmer Confirmer, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	return &Manager{
		store:     store,
		confirmer: confirmer,
		opts:      opts,
		queue:     newWriteQueue(store, opts.Key, logger),
		logger:    logger,
	}
}

// Add appends a snapshot of item. Duplicates are kept.
func (m *Manager) Add(item domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := append(slices.Clone(m.entries), item.Entry())
	m.commitLocked(next)

	m.logger.Debug("Added to cart",
		zap.String("id", string(item.ID)),
		zap.Int("size", len(next)))
}

// Remove drops every entry with id and returns how many were removed.
func (m *Manager) Remove(id domain.ItemID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]domain.CartEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.ID != id {
			next = append(next, e)
		}
	}
	removed := len(m.entries) - len(next)
	m.commitLocked(next)

	m.logger.Debug("Removed from cart",
		zap.String("id", string(id)),
		zap.Int("removed", removed))
	return removed
}

// commitLocked swaps in the next cart and queues its snapshot. The queue
// send happens under the lock so writes land in commit order.
func (m *Manager) commitLocked(next []domain.CartEntry) {
	m.entries = next
	m.queue.enqueue(writeRequest{op: opSet, snapshot: slices.Clone(next)})
}

// Contains reports whether any entry has id.
func (m *Manager) Contains(id domain.ItemID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.ContainsFunc(m.entries, func(e domain.CartEntry) bool { return e.ID == id })
}

// Entries returns a copy of the cart.
func (m *Manager) Entries() []domain.CartEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Len returns the number of entries, duplicates included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Total sums the entry prices in the base currency.
func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, e := range m.entries {
		total = total.Add(e.Price)
	}
	return total
}

// Persisted reports whether the store holds a cart.
func (m *Manager) Persisted(ctx context.Context) (bool, error) {
	has, err := m.store.Has(ctx, m.opts.Key)
	if err != nil {
		return false, fmt.Errorf("check persisted cart: %w", err)
	}
	return has, nil
}

// Restore replaces the in-memory cart with the persisted one, if any. It
// reports whether a persisted cart was found.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	var restored []domain.CartEntry
	err := m.store.Get(ctx, m.opts.Key, &restored)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		m.logger.Error("Failed to restore cart", zap.Error(err))
		return false, fmt.Errorf("restore cart: %w", err)
	}

	m.mu.Lock()
	m.entries = restored
	m.mu.Unlock()

	m.logger.Info("Cart restored from storage", zap.Int("entries", len(restored)))
	return true, nil
}

// ConfirmReset asks the user whether to empty a non-empty cart. It returns
// true when the cart was cleared. An empty cart never shows the prompt.
func (m *Manager) ConfirmReset(ctx context.Context, prompt dialog.Prompt) (bool, error) {
	if m.Len() == 0 {
		return false, nil
	}
	if m.confirmer == nil {
		return false, errors.New("no confirmer configured")
	}

	confirmed, err := m.confirmer.Confirm(ctx, prompt)
	if err != nil {
		m.logger.Warn("Cart reset prompt failed", zap.Error(err))
		return false, fmt.Errorf("confirm reset: %w", err)
	}
	if !confirmed {
		m.logger.Debug("Cart reset declined")
		return false, nil
	}

	// The success notice is shown before the cart empties.
	if err := m.confirmer.NotifySuccess(ctx); err != nil {
		m.logger.Warn("Cart reset notification failed", zap.Error(err))
	}
	m.clear()
	return true, nil
}

func (m *Manager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	op := opDelete
	if m.opts.WipeAllOnReset {
		op = opClearAll
	}
	m.queue.enqueue(writeRequest{op: op})

	m.logger.Info("Cart cleared", zap.Bool("wipe_all", m.opts.WipeAllOnReset))
}

// Flush waits for every queued write to reach the store.
func (m *Manager) Flush(ctx context.Context) error {
	return m.queue.flush(ctx)
}

// Close drains pending writes and stops the writer. The store is not closed.
func (m *Manager) Close() {
	m.queue.close()
}
