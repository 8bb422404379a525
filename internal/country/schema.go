package country

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const countrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "code", "capital", "population", "region"],
  "properties": {
    "name":        {"type": "string", "minLength": 1},
    "code":        {"type": "string", "pattern": "^[A-Z]{2,3}$"},
    "capital":     {"type": "string", "minLength": 1},
    "population":  {"type": "integer", "minimum": 0},
    "region":      {"type": "string", "minLength": 1},
    "currency":    {"type": "string"},
    "flag":        {"type": "string"},
    "gdp":         {"type": "number", "minimum": 0},
    "area":        {"type": "number", "minimum": 0},
    "growth_rate": {"type": "number"},
    "landmark":    {"type": "string"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(countrySchema))
	})
	return schema, schemaErr
}

// Validate checks a record against the catalog schema.
func Validate(c Country) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compiling country schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(c))
	if err != nil {
		return fmt.Errorf("validating country %q: %w", c.Code, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid country %q: %s", c.Code, strings.Join(msgs, "; "))
}
