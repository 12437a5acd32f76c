// Package schema checks raw workflow documents against the embedded JSON Schema
// before they are decoded.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed workflow.schema.json
var workflowSchema []byte

// ErrInvalidDocument is wrapped by every schema failure.
var ErrInvalidDocument = errors.New("document does not match the workflow schema")

// ValidationError lists every schema error of a document.
type ValidationError struct {
	Errors []string `json:"errors"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDocument, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

var compiled = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(workflowSchema))
})

// Raw returns the schema document.
func Raw() []byte {
	return workflowSchema
}

// Validate checks a JSON payload. A payload that is not JSON at all is also
// reported as a *ValidationError.
func Validate(raw []byte) error {
	s, err := compiled()
	if err != nil {
		return fmt.Errorf("failed to compile workflow schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return &ValidationError{Errors: messages}
}

// Decode validates a JSON payload and decodes it into a document.
func Decode(raw []byte) (*models.Document, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var doc models.Document

	err := json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}

	return &doc, nil
}

// DecodeYAML converts a YAML payload to JSON and decodes it like Decode.
func DecodeYAML(raw []byte) (*models.Document, error) {
	var tree any

	err := yaml.Unmarshal(raw, &tree)
	if err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}

	return Decode(data)
}
