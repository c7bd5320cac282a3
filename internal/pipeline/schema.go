package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ExtractionSchema describes the object the extraction prompt asks for.
// Scalars may arrive as numbers or strings and parties as plain text;
// confidence leaves must lie in [0, 1].
func ExtractionSchema() map[string]any {
	scalar := map[string]any{"type": []any{"string", "number", "null"}}
	party := map[string]any{"type": []any{"object", "string", "null"}}
	lineItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_number":  scalar,
			"quantity":     scalar,
			"unit_measure": scalar,
			"description":  scalar,
			"unit_cost":    scalar,
			"amount":       scalar,
		},
	}
	return map[string]any{
		"type": "object",
		"$defs": map[string]any{
			"confidence": map[string]any{
				"type":                 []any{"object", "array", "number", "null"},
				"minimum":              0.0,
				"maximum":              1.0,
				"additionalProperties": map[string]any{"$ref": "#/$defs/confidence"},
				"items":                map[string]any{"$ref": "#/$defs/confidence"},
			},
		},
		"properties": map[string]any{
			"document_type":        map[string]any{"type": "string", "minLength": 1},
			"document_number":      scalar,
			"date":                 scalar,
			"vendor_information":   party,
			"customer_information": party,
			"payment_information":  party,
			"amounts":              map[string]any{"type": []any{"object", "null"}},
			"line_items":           map[string]any{"type": "array", "items": lineItem},
			"confidence":           map[string]any{"$ref": "#/$defs/confidence"},
		},
		"required": []any{"document_type", "line_items"},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func extractionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(ExtractionSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("extraction.json")
	})
	return compiledSchema, schemaErr
}

// ValidateExtraction checks a parsed result (decoded with UseNumber) against
// ExtractionSchema.
func ValidateExtraction(result map[string]any) error {
	schema, err := extractionSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(map[string]any(result)); err != nil {
		return fmt.Errorf("extraction does not match schema: %w", err)
	}
	return nil
}

// lowConfidence lists confidence leaves below min, as dotted paths.
func lowConfidence(result map[string]any, min float64) []string {
	var out []string
	var walk func(path string, v any)
	walk = func(path string, v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, x := range t {
				walk(joinPath(path, k), x)
			}
		case []any:
			for i, x := range t {
				walk(joinPath(path, fmt.Sprint(i)), x)
			}
		case json.Number, float64:
			if number(t) < min {
				out = append(out, path)
			}
		}
	}
	walk("", result["confidence"])
	sort.Strings(out)
	return out
}

func joinPath(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return strings.Join([]string{prefix, k}, ".")
}
