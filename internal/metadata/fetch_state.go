package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Attempt is the outcome history of one remote source.
type Attempt struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   string
}

// Failed reports whether the most recent attempt failed.
func (a Attempt) Failed() bool {
	return a.LastError != ""
}

// FetchState tracks the last fetch outcome per endpoint.
type FetchState struct {
	mu        sync.RWMutex
	path      string
	Endpoints map[string]Attempt
}

// fetchStateFileModel is a YAML-friendly representation of FetchState.
type fetchStateFileModel struct {
	Endpoints map[string]attemptFileModel `yaml:"endpoints"`
}

type attemptFileModel struct {
	LastAttempt string `yaml:"last_attempt,omitempty"`
	LastSuccess string `yaml:"last_success,omitempty"`
	LastError   string `yaml:"last_error,omitempty"`
}

// LoadFetchState loads the state from the given YAML file. A missing file or
// an empty path yields an empty state.
func LoadFetchState(path string) (*FetchState, error) {
	fs := &FetchState{
		path:      path,
		Endpoints: make(map[string]Attempt),
	}

	if path == "" {
		return fs, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fetch state: %w", err)
	}

	var fileModel fetchStateFileModel
	if err := yaml.Unmarshal(data, &fileModel); err != nil {
		return nil, fmt.Errorf("parse fetch state: %w", err)
	}

	for endpoint, m := range fileModel.Endpoints {
		fs.Endpoints[endpoint] = Attempt{
			LastAttempt: parseTime(m.LastAttempt),
			LastSuccess: parseTime(m.LastSuccess),
			LastError:   m.LastError,
		}
	}

	return fs, nil
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

// Record stores the outcome of a fetch made at ts. A nil err counts as success.
func (fs *FetchState) Record(endpoint string, err error, ts time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Endpoints == nil {
		fs.Endpoints = make(map[string]Attempt)
	}
	a := fs.Endpoints[endpoint]
	a.LastAttempt = ts
	if err != nil {
		a.LastError = err.Error()
	} else {
		a.LastSuccess = ts
		a.LastError = ""
	}
	fs.Endpoints[endpoint] = a
}

// Last returns the recorded attempt for endpoint.
func (fs *FetchState) Last(endpoint string) (Attempt, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	a, ok := fs.Endpoints[endpoint]
	return a, ok
}

// Names returns the recorded endpoints in sorted order.
func (fs *FetchState) Names() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	names := make([]string, 0, len(fs.Endpoints))
	for name := range fs.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the state to the path it was loaded from. It is a no-op when the
// state has no path.
func (fs *FetchState) Save() error {
	if fs.path == "" {
		return nil
	}

	fs.mu.RLock()
	fileModel := fetchStateFileModel{
		Endpoints: make(map[string]attemptFileModel, len(fs.Endpoints)),
	}
	for endpoint, a := range fs.Endpoints {
		fileModel.Endpoints[endpoint] = attemptFileModel{
			LastAttempt: formatTime(a.LastAttempt),
			LastSuccess: formatTime(a.LastSuccess),
			LastError:   a.LastError,
		}
	}
	fs.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(&fileModel)
	if err != nil {
		return fmt.Errorf("marshal fetch state: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write fetch state: %w", err)
	}
	return os.Rename(tmp, fs.path)
}
