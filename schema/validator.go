package prefschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed preferences.schema.json
var preferencesSchemaJSON string

// PreferencesPayload is one user's keyword preference submission. Imports
// replace the stored set wholesale.
type PreferencesPayload struct {
	UserID     string   `json:"user_id"`
	Jobs       []string `json:"jobs"`
	Industries []string `json:"industries"`
	Keywords   []string `json:"keywords"`
}

// Categorized groups the payload's keyword lists by their storage category.
func (p *PreferencesPayload) Categorized() map[string][]string {
	return map[string][]string{
		"job":      p.Jobs,
		"industry": p.Industries,
		"keyword":  p.Keywords,
	}
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func ValidatePreferencesPayload(payload json.RawMessage) (*PreferencesPayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var parsed PreferencesPayload
	if err := json.Unmarshal(normalized, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&parsed); err != nil {
		return nil, err
	}

	return &parsed, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("preferences.schema.json", strings.NewReader(preferencesSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("preferences.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(payload *PreferencesPayload) error {
	if payload == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(payload.UserID) == "" {
		return fmt.Errorf("user_id must not be empty")
	}

	for category, entries := range payload.Categorized() {
		if len(entries) == 0 {
			return fmt.Errorf("%s list must not be empty", category)
		}
		for i, entry := range entries {
			if strings.TrimSpace(entry) == "" {
				return fmt.Errorf("%s[%d] must not be empty", category, i)
			}
		}
	}

	return nil
}
