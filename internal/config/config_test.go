package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 10, cfg.Catalog.PageSize)
	assert.True(t, cfg.Catalog.ResetPageOnSearch)
	assert.Equal(t, "cart", cfg.Storage.Key)
	assert.False(t, cfg.Storage.WipeAllOnReset)
	assert.Equal(t, "USD", cfg.Endpoints.BaseCurrency)
	assert.Equal(t, 30*time.Second, cfg.Endpoints.Timeout)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  page_size: 5
storage:
  backend: sqlite
  path: /tmp/cart.db
endpoints:
  timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Catalog.PageSize)
	assert.True(t, cfg.Catalog.ResetPageOnSearch, "absent keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "cart", cfg.Storage.Key)
	assert.Equal(t, 2*time.Second, cfg.Endpoints.Timeout)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yml")
	cfg := Defaults()
	cfg.Storage.WipeAllOnReset = true
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadValidated(path, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadValidated_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown backend": "storage:\n  backend: redis\n",
		"zero page size":  "catalog:\n  page_size: 0\n",
		"bad log level":   "application:\n  log_level: loud\n",
		"unknown section": "websocket:\n  url: ws://x\n",
		"bad currency":    "endpoints:\n  base_currency: usd\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadValidated(writeConfig(t, body), map[string]string{})
			assert.ErrorContains(t, err, "config validation failed")
		})
	}
}

func TestLoadValidated_EnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_URL", "http://localhost/courses")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("STORAGE_PASSPHRASE", "1234")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, "storage:\n  backend: sqlite\n  passphrase: old\n")
	cfg, err := LoadValidated(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost/courses", cfg.Endpoints.CatalogURL)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "1234", cfg.Storage.Passphrase, "numeric-looking strings stay strings")
	assert.Equal(t, "debug", cfg.Application.LogLevel)
}

func TestLoadValidated_EnvOverrideIsValidated(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "redis")

	_, err := LoadValidated("", nil)
	assert.ErrorContains(t, err, "config validation failed")
}

func TestLoadValidated_TypedOverride(t *testing.T) {
	t.Setenv("CATALOG_PAGE_SIZE", "25")
	t.Setenv("CATALOG_RESET", "false")

	path := writeConfig(t, "catalog:\n  page_size: 10\n  reset_page_on_search: true\n")
	cfg, err := LoadValidated(path, map[string]string{
		"CATALOG_PAGE_SIZE": "catalog.page_size",
		"CATALOG_RESET":     "catalog.reset_page_on_search",
	})
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Catalog.PageSize)
	assert.False(t, cfg.Catalog.ResetPageOnSearch)
}

func TestLoadValidated_EmptyPath(t *testing.T) {
	cfg, err := LoadValidated("", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestSetNestedField(t *testing.T) {
	m := map[string]interface{}{"a": "flat"}
	setNestedField(m, "a.b.c", 1)
	setNestedField(m, "x", "y")

	assert.Equal(t, 1, lookupNestedField(m, "a.b.c"))
	assert.Equal(t, "y", m["x"])
	assert.Nil(t, lookupNestedField(m, "a.missing.c"))
}
