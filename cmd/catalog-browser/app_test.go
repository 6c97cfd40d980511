package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trade-engine/catalog-browser/internal/metadata"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`{"courses":[`)
	for i := 1; i <= 12; i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id":%d,"name":"Course %02d","price":%d,"level":"Beginners","added_date":"2020-01-%02d","description":"About %d"}`, i, i, i*10, i, i)
	}
	sb.WriteString(`]}`)
	body := sb.String()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/courses":
			_, _ = w.Write([]byte(body))
		case "/rates":
			_, _ = w.Write([]byte(`{"base":"USD","rates":{"EUR":0.5}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, srv *httptest.Server, dir string) string {
	t.Helper()
	cfg := fmt.Sprintf(`application:
  log_level: error
endpoints:
  catalog_url: %[1]s/courses
  rates_url: %[1]s/rates
  requests_per_minute: 6000
storage:
  backend: sqlite
  path: %[2]s/cart.db
metadata:
  state_path: %[2]s/fetch_state.yml
export:
  base_path: %[2]s/exports
`, srv.URL, dir)
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestApplication_Session(t *testing.T) {
	srv := catalogServer(t)
	dir := t.TempDir()

	input := strings.Join([]string{
		"help",
		"search course 1",
		"add 10",
		"add 10",
		"cart",
		"currency eur",
		"toggle 10",
		"reset",
		"y",
		"export",
		"exports",
		"bogus",
		"quit",
	}, "\n") + "\n"

	var out strings.Builder
	app, err := NewApplication(writeTestConfig(t, srv, dir), strings.NewReader(input), &out)
	require.NoError(t, err)
	require.NoError(t, app.Run())

	text := out.String()
	assert.Contains(t, text, "Page 1/2 (12 items)")
	assert.Contains(t, text, "Commands:")
	assert.Contains(t, text, "Page 1/1 (3 items)", "Course 10, 11 and 12 match")
	assert.Contains(t, text, "item already in cart")
	assert.Contains(t, text, "Total")
	assert.Contains(t, text, "€")
	assert.Contains(t, text, "About 10")
	assert.Contains(t, text, "Reset cart?")
	assert.Contains(t, text, "Your cart is empty now.")
	assert.Contains(t, text, "exported to "+filepath.Join(dir, "exports"))
	assert.Contains(t, text, "3 rows")
	assert.Contains(t, text, `unknown command "bogus"`)

	state, err := metadata.LoadFetchState(filepath.Join(dir, "fetch_state.yml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog", "rates"}, state.Names())
}

func TestApplication_PageStepping(t *testing.T) {
	srv := catalogServer(t)
	dir := t.TempDir()

	input := strings.Join([]string{"prev", "next", "next", "prev", "quit"}, "\n") + "\n"

	var out strings.Builder
	app, err := NewApplication(writeTestConfig(t, srv, dir), strings.NewReader(input), &out)
	require.NoError(t, err)
	require.NoError(t, app.Run())

	text := out.String()
	assert.Contains(t, text, "Already on the first page.")
	assert.Contains(t, text, "Page 2/2 (12 items)")
	assert.Contains(t, text, "Already on the last page.")
	assert.Equal(t, 2, strings.Count(text, "Page 1/2 (12 items)"), "initial page and the step back")
}

// syncBuffer lets the test read output while Run is still writing.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestApplication_CancelDuringRestorePrompt(t *testing.T) {
	srv := catalogServer(t)
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, srv, dir)

	first, err := NewApplication(cfgPath, strings.NewReader("add 1\nquit\n"), &strings.Builder{})
	require.NoError(t, err)
	require.NoError(t, first.Run())

	// stdin stays open and silent, so the prompt never gets an answer
	stdin, stdinWriter := io.Pipe()
	t.Cleanup(func() { stdinWriter.Close() })

	out := &syncBuffer{}
	app, err := NewApplication(cfgPath, stdin, out)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Your cart isn't empty!!")
	}, 5*time.Second, 10*time.Millisecond)

	app.cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.NotContains(t, out.String(), `Type "help" for commands.`)
}

func TestApplication_CatalogUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	var out strings.Builder
	app, err := NewApplication(writeTestConfig(t, srv, dir), strings.NewReader("quit\n"), &out)
	require.NoError(t, err)
	require.NoError(t, app.Run())

	assert.Contains(t, out.String(), "CAN'T LOAD ITEMS DATA, PLEASE TRY AGAIN LATER")
	assert.Contains(t, out.String(), "Exchange rates unavailable")
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0o644))

	_, err := NewApplication(path, strings.NewReader(""), &strings.Builder{})
	assert.ErrorContains(t, err, "config validation failed")
}
