package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Store is the key-value collaborator the cart persists through. Values are
// opaque structures serialized by the backend.
type Store interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory     = "memory"
	BackendSecureFile = "securefile"
	BackendSQLite     = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Path       string
	Passphrase string
}

// Open builds the backend named in opts.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSecureFile:
		return NewSecureFileStore(opts.Path, opts.Passphrase, logger)
	case BackendSQLite:
		return OpenSQLiteStore(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
