package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/trade-engine/catalog-browser/internal/domain"
	"github.com/trade-engine/catalog-browser/internal/storage"
)

type writeOp int

const (
	opSet writeOp = iota
	opDelete
	opClearAll
	opFlush
)

// writeRequest is one persistence step; flush requests only carry done.
type writeRequest struct {
	op       writeOp
	snapshot []domain.CartEntry
	done     chan struct{}
}

// writeQueue applies storage writes one at a time, in enqueue order, on its
// own goroutine so no update can overtake an earlier one.
type writeQueue struct {
	store  storage.Store
	key    string
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	requests chan writeRequest
	stopped  chan struct{}
}

func newWriteQueue(store storage.Store, key string, logger *zap.Logger) *writeQueue {
	q := &writeQueue{
		store:    store,
		key:      key,
		logger:   logger,
		requests: make(chan writeRequest, 64),
		stopped:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *writeQueue) loop() {
	defer close(q.stopped)

	for req := range q.requests {
		ctx := context.Background()
		var err error

		switch req.op {
		case opSet:
			err = q.store.Set(ctx, q.key, req.snapshot)
		case opDelete:
			err = q.store.Delete(ctx, q.key)
		case opClearAll:
			err = q.store.Clear(ctx)
		}

		if err != nil {
			// In-memory cart stays authoritative; the next write retries with a full snapshot.
			q.logger.Error("Failed to persist cart",
				zap.String("key", q.key),
				zap.Int("op", int(req.op)),
				zap.Error(err))
		}
		if req.done != nil {
			close(req.done)
		}
	}
}

// enqueue hands a request to the writer; requests after close are dropped.
func (q *writeQueue) enqueue(req writeRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("Cart write dropped after close", zap.Int("op", int(req.op)))
		return false
	}
	q.requests <- req
	return true
}

// flush blocks until every request enqueued before it has been applied.
func (q *writeQueue) flush(ctx context.Context) error {
	done := make(chan struct{})
	if !q.enqueue(writeRequest{op: opFlush, done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains pending writes and stops the goroutine.
func (q *writeQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	close(q.requests)
	q.mu.Unlock()

	<-q.stopped
}
