// Package schemas holds the JSON Schemas that structured model responses are
// checked against. Schemas are embedded at compile time.
package schemas

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	JobScores   = "job_scores"
	CoverLetter = "cover_letter"
	CallScript  = "call_script"
)

//go:embed *.json
var schemaFiles embed.FS

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "response does not match schema %s:", ve.Schema)
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, " %d. %s: %s;", i+1, err.Field, err.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Get returns the schema document registered under name.
func Get(name string) (string, error) {
	data, err := schemaFiles.ReadFile(name + ".json")
	if err != nil {
		return "", fmt.Errorf("unknown response schema %q", name)
	}
	return string(data), nil
}

// Validate checks doc against the named schema. A document that is not valid
// JSON is reported as an error, not as a *ValidationError.
func Validate(name, doc string) error {
	schema, err := Get(name)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate against %s: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Schema: name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
