package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaJSON string

// DefaultEnvMapping maps environment variables to dotted config paths.
var DefaultEnvMapping = map[string]string{
	"CATALOG_URL":        "endpoints.catalog_url",
	"RATES_URL":          "endpoints.rates_url",
	"STORAGE_BACKEND":    "storage.backend",
	"STORAGE_PATH":       "storage.path",
	"STORAGE_PASSPHRASE": "storage.passphrase",
	"LOG_LEVEL":          "application.log_level",
}

// LoadValidated loads the YAML config at cfgPath, applies environment
// overrides, validates the result against the embedded JSON Schema and
// decodes it over Defaults. An empty cfgPath validates the overrides alone.
//
// envMapping is optional; when nil DefaultEnvMapping is used.
func LoadValidated(cfgPath string, envMapping map[string]string) (*Config, error) {
	doc := map[string]interface{}{}

	if cfgPath != "" {
		yb, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var raw interface{}
		if err := yaml.Unmarshal(yb, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
		converted, err := toJSONCompatible(raw)
		if err != nil {
			return nil, fmt.Errorf("convert yaml->json compatible: %w", err)
		}
		switch typed := converted.(type) {
		case map[string]interface{}:
			doc = typed
		case nil:
		default:
			return nil, fmt.Errorf("config root must be a mapping, got %T", converted)
		}
	}

	if envMapping == nil {
		envMapping = DefaultEnvMapping
	}
	applyEnvOverrides(doc, envMapping)

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	// the document is valid; round-trip it through YAML onto the defaults
	merged, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal merged config: %w", err)
	}
	return decode(merged)
}

func validateDocument(doc map[string]interface{}) error {
	jb, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal to json: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jb),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for _, e := range result.Errors() {
			sb.WriteString("- ")
			sb.WriteString(e.String())
			sb.WriteString("\n")
		}
		return fmt.Errorf("config validation failed:\n%s", sb.String())
	}
	return nil
}

// applyEnvOverrides reads environment variables per mapping and sets dotted-paths in cfg.
func applyEnvOverrides(cfg map[string]interface{}, mapping map[string]string) {
	for env, path := range mapping {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			setNestedField(cfg, path, coerce(lookupNestedField(cfg, path), v))
		}
	}
}

// coerce converts v to the type of the value it replaces, so numeric and
// boolean settings stay typed. Unknown or string targets keep v as a string.
func coerce(existing interface{}, v string) interface{} {
	switch existing.(type) {
	case int, int64, float64:
		if i, err := tryParseInt(v); err == nil {
			return i
		}
	case bool:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return v
}

func lookupNestedField(m map[string]interface{}, dotted string) interface{} {
	var cur interface{} = m
	for _, p := range strings.Split(dotted, ".") {
		asMap, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = asMap[p]
	}
	return cur
}

// setNestedField sets value at dotted path (e.g. "storage.backend") creating maps as needed.
func setNestedField(m map[string]interface{}, dotted string, value interface{}) {
	parts := strings.Split(dotted, ".")
	last := len(parts) - 1
	cur := m
	for i, p := range parts {
		if i == last {
			cur[p] = value
			return
		}
		next, exists := cur[p]
		if !exists {
			nm := make(map[string]interface{})
			cur[p] = nm
			cur = nm
			continue
		}
		switch typed := next.(type) {
		case map[string]interface{}:
			cur = typed
		default:
			// overwrite non-map with map to set deeper values
			nm := make(map[string]interface{})
			cur[p] = nm
			cur = nm
		}
	}
}

// tryParseInt attempts to parse string to int; returns error on failure.
func tryParseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	// accept integer-valued floats like "123.0"
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if float64(int64(f)) == f {
			return int64(f), nil
		}
	}
	return 0, fmt.Errorf("not int")
}

// toJSONCompatible converts yaml-parsed structures (with map[interface{}]interface{}) into map[string]interface{} recursively.
func toJSONCompatible(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, vv := range val {
			conv, err := toJSONCompatible(vv)
			if err != nil {
				return nil, err
			}
			m[k] = conv
		}
		return m, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, vv := range val {
			ks := fmt.Sprintf("%v", k)
			conv, err := toJSONCompatible(vv)
			if err != nil {
				return nil, err
			}
			m[ks] = conv
		}
		return m, nil
	case []interface{}:
		arr := make([]interface{}, len(val))
		for i, vv := range val {
			conv, err := toJSONCompatible(vv)
			if err != nil {
				return nil, err
			}
			arr[i] = conv
		}
		return arr, nil
	default:
		return val, nil
	}
}
