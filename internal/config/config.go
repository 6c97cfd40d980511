package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Application Application `yaml:"application"`
	Endpoints   Endpoints   `yaml:"endpoints"`
	Catalog     Catalog     `yaml:"catalog"`
	Storage     Storage     `yaml:"storage"`
	Metadata    Metadata    `yaml:"metadata"`
	Export      Export      `yaml:"export"`
}

type Application struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	LogLevel string `yaml:"log_level"`
}

type Endpoints struct {
	CatalogURL        string        `yaml:"catalog_url"`
	RatesURL          string        `yaml:"rates_url"`
	BaseCurrency      string        `yaml:"base_currency"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

type Catalog struct {
	PageSize          int  `yaml:"page_size"`
	ResetPageOnSearch bool `yaml:"reset_page_on_search"`
}

type Storage struct {
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path"`
	Passphrase     string `yaml:"passphrase"`
	Key            string `yaml:"key"`
	WipeAllOnReset bool   `yaml:"wipe_all_on_reset"`
}

type Metadata struct {
	StatePath string `yaml:"state_path"`
}

type Export struct {
	BasePath string `yaml:"base_path"`
}

// Defaults returns a configuration usable without any file.
func Defaults() *Config {
	return &Config{
		Application: Application{
			Name:     "catalog-browser",
			Version:  "1.0.0",
			LogLevel: "info",
		},
		Endpoints: Endpoints{
			CatalogURL:        "https://testapi.io/api/MohamadHusari/courses",
			RatesURL:          "https://api.exchangeratesapi.io/latest?base=USD",
			BaseCurrency:      "USD",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 30,
		},
		Catalog: Catalog{
			PageSize:          10,
			ResetPageOnSearch: true,
		},
		Storage: Storage{
			Backend: "securefile",
			Path:    filepath.Join("data", "cart.store"),
			Key:     "cart",
		},
		Metadata: Metadata{
			StatePath: filepath.Join("data", "fetch_state.yml"),
		},
		Export: Export{
			BasePath: filepath.Join("data", "exports"),
		},
	}
}

// Load reads the YAML file at path over Defaults. Keys absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
