package detail

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStaleHandle is returned by a Handle whose panel is no longer mounted.
var ErrStaleHandle = errors.New("detail panel handle is stale")

// Handle is one item's expandable description panel.
type Handle interface {
	// Close collapses the panel.
	Close() error
}

// Coordinator keeps at most one detail panel open.
type Coordinator struct {
	mu     sync.Mutex
	open   Handle
	logger *zap.Logger
}

func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{logger: logger}
}

// Toggle opens h, closes it if it is the open one, or closes the open panel
// and then opens h. A failing close of the previous panel is ignored.
func (c *Coordinator) Toggle(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.open == nil:
		c.open = h
	case c.open == h:
		c.open = nil
	default:
		if err := c.open.Close(); err != nil {
			c.logger.Debug("Previous detail panel did not close", zap.Error(err))
		}
		c.open = h
	}
}

// Open returns the open handle, or nil.
func (c *Coordinator) Open() Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// IsOpen reports whether h is the open panel.
func (c *Coordinator) IsOpen(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return h != nil && c.open == h
}

// Forget clears the open slot when h is unmounted while open.
func (c *Coordinator) Forget(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == h {
		c.open = nil
	}
}
