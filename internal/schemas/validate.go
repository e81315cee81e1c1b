// Package schemas validates records crossing the process boundary against
// their structural contracts. It is the single point of contact between
// data just received over the wire and data the rest of the system may
// trust: validation is all-or-nothing and never coerces or drops fields.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ValidationError represents a structural validation failure with every
// violated field path.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s record failed validation:\n", ve.Schema))
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or compiling a schema itself.
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

func compile() {
	compiled = make(map[string]*gojsonschema.Schema)
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		compileErr = &SchemaLoadError{Name: "schemas", Message: "reading embedded schemas", Cause: err}
		return
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			compileErr = &SchemaLoadError{Name: name, Message: "reading embedded schema", Cause: err}
			return
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			compileErr = &SchemaLoadError{Name: name, Message: "compiling schema", Cause: err}
			return
		}
		compiled[name] = schema
	}
}

// Validate checks raw JSON against the named embedded schema. It returns
// nil when the document conforms, a *ValidationError enumerating every
// violated field path when it does not, and a *SchemaLoadError when the
// schema itself cannot be used. Validate is pure: it never modifies or
// coerces the document.
func Validate(schemaName string, raw []byte) error {
	compileOnce.Do(compile)
	if compileErr != nil {
		return compileErr
	}

	schema, ok := compiled[schemaName]
	if !ok {
		return &SchemaLoadError{Name: schemaName, Message: "unknown schema"}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// gojsonschema only errors here when the document is not JSON at all.
		return &ValidationError{
			Schema: schemaName,
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: schemaName,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
