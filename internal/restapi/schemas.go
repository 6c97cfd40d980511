package restapi

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const catalogSchemaJSON = `{
  "type": "object",
  "required": ["courses"],
  "properties": {
    "courses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "price"],
        "properties": {
          "id": {"type": ["integer", "string"]},
          "name": {"type": "string"},
          "price": {"type": ["number", "string"]},
          "level": {"type": "string"},
          "added_date": {"type": ["string", "integer"]}
        }
      }
    }
  }
}`

const ratesSchemaJSON = `{
  "type": "object",
  "required": ["rates"],
  "properties": {
    "base": {"type": "string"},
    "rates": {
      "type": "object",
      "additionalProperties": {"type": "number"}
    }
  }
}`

var (
	catalogSchema = mustSchema(catalogSchemaJSON)
	ratesSchema   = mustSchema(ratesSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile payload schema: %v", err))
	}
	return schema
}

// validate checks body against schema and folds all violations into one error.
func validate(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	for i, e := range result.Errors() {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, sb.String())
}
