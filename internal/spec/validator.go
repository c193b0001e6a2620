package spec

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/source_spec.schema.json
var schemaFS embed.FS

// FieldError is one schema violation located by JSON pointer.
type FieldError struct {
	Pointer string `json:"pointer"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a document against the spec
// schema.
type ValidationResult struct {
	OK     bool         `json:"ok"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Err folds a failed result into a single error, one line per violation.
// Returns nil for a passing result.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	lines := make([]string, len(r.Errors))
	for i, fe := range r.Errors {
		lines[i] = fmt.Sprintf("%s: %s", fe.Pointer, fe.Message)
	}
	return fmt.Errorf("spec validation failed: %s", strings.Join(lines, "; "))
}

// Validator checks specs against the embedded JSON Schema (2020-12 semantics).
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded schema. Compilation failure means a
// packaging defect, so most callers treat an error here as fatal.
func NewValidator() (*Validator, error) {
	raw, err := schemaFS.ReadFile("schema/source_spec.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("source_spec.schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to register schema: %w", err)
	}
	schema, err := compiler.Compile("source_spec.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a spec against the schema and returns pointer-located
// errors for every violation.
func (v *Validator) Validate(s *SourceSpec) (ValidationResult, error) {
	// Validate a copy with nil lists normalized to empty slices; the
	// caller's spec is never mutated here.
	normalized := *s
	normalized.ensureSlices()
	raw, err := json.Marshal(&normalized)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to serialize spec for validation: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ValidationResult{}, fmt.Errorf("failed to deserialize spec for validation: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return ValidationResult{OK: false, Errors: leafErrors(ve)}, nil
		}
		return ValidationResult{}, fmt.Errorf("schema validation failed: %w", err)
	}
	return ValidationResult{OK: true}, nil
}

// leafErrors flattens a validation error tree to its most specific causes.
func leafErrors(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		pointer := ve.InstanceLocation
		if pointer == "" {
			pointer = "/"
		}
		return []FieldError{{Pointer: pointer, Message: ve.Message}}
	}
	var out []FieldError
	for _, cause := range ve.Causes {
		out = append(out, leafErrors(cause)...)
	}
	return out
}
