package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

type entry struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	secure, err := NewSecureFileStore(filepath.Join(dir, "store.yml"), "s3cret", zaptest.NewLogger(t))
	require.NoError(t, err)

	sqlite, err := OpenSQLiteStore(ctx, filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		BackendMemory:     NewMemoryStore(),
		BackendSecureFile: secure,
		BackendSQLite:     sqlite,
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			has, err := store.Has(ctx, "cart")
			require.NoError(t, err)
			assert.False(t, has)

			var got []entry
			assert.ErrorIs(t, store.Get(ctx, "cart", &got), ErrNotFound)

			want := []entry{{ID: 1, Name: "Go", Price: "10.50"}, {ID: 2, Name: "Rust", Price: "12"}}
			require.NoError(t, store.Set(ctx, "cart", want))
			require.NoError(t, store.Set(ctx, "theme", "dark"))

			has, err = store.Has(ctx, "cart")
			require.NoError(t, err)
			assert.True(t, has)

			require.NoError(t, store.Get(ctx, "cart", &got))
			assert.Equal(t, want, got)

			// Overwrite replaces the value.
			require.NoError(t, store.Set(ctx, "cart", want[:1]))
			require.NoError(t, store.Get(ctx, "cart", &got))
			assert.Equal(t, want[:1], got)

			require.NoError(t, store.Delete(ctx, "cart"))
			has, err = store.Has(ctx, "cart")
			require.NoError(t, err)
			assert.False(t, has)

			has, err = store.Has(ctx, "theme")
			require.NoError(t, err)
			assert.True(t, has, "delete only touches its key")

			require.NoError(t, store.Clear(ctx))
			has, err = store.Has(ctx, "theme")
			require.NoError(t, err)
			assert.False(t, has)

			assert.NoError(t, store.Delete(ctx, "missing"))
		})
	}
}

func TestSecureFileStore_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secure", "store.yml")

	store, err := NewSecureFileStore(path, "pass", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "cart", []entry{{ID: 1, Name: "Distinctive Course Name"}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Distinctive Course Name")
	assert.Contains(t, string(raw), "cart:")

	// A second handle on the same file reads the value back.
	reopened, err := NewSecureFileStore(path, "pass", zaptest.NewLogger(t))
	require.NoError(t, err)
	var got []entry
	require.NoError(t, reopened.Get(ctx, "cart", &got))
	assert.Equal(t, "Distinctive Course Name", got[0].Name)
}

func TestSecureFileStore_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.yml")

	store, err := NewSecureFileStore(path, "right", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "cart", []entry{{ID: 1}}))

	other, err := NewSecureFileStore(path, "wrong", zaptest.NewLogger(t))
	require.NoError(t, err)
	var got []entry
	assert.ErrorContains(t, other.Get(ctx, "cart", &got), "decrypt")
}

func TestSecureFileStore_DerivesKeyWithArgon2id(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.yml")

	store, err := NewSecureFileStore(path, "pass", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "cart", []entry{{ID: 1}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc secureDocument
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, secureDocVersion, doc.Version)
	assert.Equal(t, defaultKDF, doc.KDF)

	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	require.NoError(t, err)
	want := argon2.IDKey([]byte("pass"), salt, doc.KDF.Time, doc.KDF.Memory, doc.KDF.Threads, keyLen)
	got, err := store.deriveKey(&doc)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSecureFileStore_RejectsOlderDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\nsalt: AAAA\nentries: {}\n"), 0o600))

	store, err := NewSecureFileStore(path, "pass", zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = store.Has(context.Background(), "cart")
	assert.ErrorContains(t, err, "unsupported version 1")
}

func TestSQLiteStore_InMemory(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", 42))
	var n int
	require.NoError(t, store.Get(ctx, "k", &n))
	assert.Equal(t, 42, n)
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	mem, err := Open(ctx, Options{Backend: "memory"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	secure, err := Open(ctx, Options{Backend: "SecureFile", Path: filepath.Join(t.TempDir(), "s.yml")}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SecureFileStore{}, secure)

	_, err = Open(ctx, Options{Backend: "redis"}, logger)
	assert.Error(t, err)
}

func TestFileLock_Exclusive(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "store.yml")

	first := NewFileLock(doc)
	require.NoError(t, first.Lock("test", time.Second))

	second := NewFileLock(doc)
	err := second.Lock("test", 100*time.Millisecond)
	assert.ErrorContains(t, err, "timeout")

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock("test", time.Second))
	require.NoError(t, second.Unlock())
	assert.NoError(t, second.Unlock(), "unlocking twice is a no-op")
}
