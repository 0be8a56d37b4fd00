// Package schema provides JSON Schema validation with custom formats.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed scene.schema.json
var sceneSchema []byte

// ErrInvalidDocument wraps every validation failure.
var ErrInvalidDocument = errors.New("document does not match schema")

// Validator validates data against a compiled JSON Schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles a validator from schema bytes.
func NewValidator(schemaData []byte) (*Validator, error) {
	RegisterCustomFormats()
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// NewSceneValidator returns a validator for scene documents.
func NewSceneValidator() (*Validator, error) {
	return NewValidator(sceneSchema)
}

// Validate validates a decoded document (maps, slices, scalars).
func (v *Validator) Validate(data interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateBytes validates raw JSON bytes.
func (v *Validator) ValidateBytes(data []byte) error {
	var obj interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidDocument, err)
	}
	return v.Validate(obj)
}
