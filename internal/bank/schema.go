package bank

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/adaptest/internal/irt"
)

const schemaURL = "schema://adaptest/item-bank.json"

// answerRule constrains correct_answer for one item type.
func answerRule(typ string, answer map[string]any) map[string]any {
	return map[string]any{
		"if": map[string]any{
			"properties": map[string]any{"type": map[string]any{"const": typ}},
		},
		"then": map[string]any{
			"properties": map[string]any{"correct_answer": answer},
		},
	}
}

// Definition is the JSON Schema of an item-bank document.
var Definition = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"properties": map[string]any{
		"version": map[string]any{"type": "string", "pattern": "^v[0-9]"},
		"pool": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":          map[string]any{"type": "string", "minLength": 1},
				"name":        map[string]any{"type": "string", "minLength": 1},
				"org_id":      map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			},
			"required":             []any{"name"},
			"additionalProperties": false,
		},
		"items": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":      map[string]any{"type": "string", "minLength": 1},
					"content": map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{
						"enum": []any{"multiple_choice", "true_false", "matching", "ordering"},
					},
					"correct_answer": map[string]any{},
					"difficulty": map[string]any{
						"type": "number", "minimum": irt.MinDifficulty, "maximum": irt.MaxDifficulty,
					},
					"discrimination": map[string]any{
						"type": "number", "minimum": irt.MinDiscrimination, "maximum": irt.MaxDiscrimination,
					},
					"guessing": map[string]any{
						"type": "number", "minimum": irt.MinGuessing, "maximum": irt.MaxGuessing,
					},
					"level":    map[string]any{"enum": []any{"easy", "medium", "hard"}},
					"topic":    map[string]any{"type": "string"},
					"subtopic": map[string]any{"type": "string"},
				},
				"required":             []any{"content", "type", "correct_answer", "difficulty"},
				"additionalProperties": false,
				"allOf": []any{
					answerRule("true_false", map[string]any{"type": "boolean"}),
					answerRule("multiple_choice", map[string]any{
						"anyOf": []any{
							map[string]any{"type": []any{"string", "number"}},
							map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"type": []any{"string", "number"}}},
						},
					}),
					answerRule("ordering", map[string]any{"type": "array", "minItems": 2}),
					answerRule("matching", map[string]any{"type": "object", "minProperties": 1}),
				},
			},
		},
	},
	"required":             []any{"items"},
	"additionalProperties": false,
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants plain decoded JSON, not Go-typed maps.
		raw, err := json.Marshal(Definition)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}
