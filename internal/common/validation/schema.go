package validation

import (
	"fmt"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema, built once at package init and reused
// per request.
type Schema struct {
	compiled *gojsonschema.Schema
}

// MustCompile parses a JSON schema document. Panics on a malformed
// schema; schemas are static literals, so this fails at startup only.
func MustCompile(schemaJSON string) *Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return &Schema{compiled: compiled}
}

// ValidateBytes validates a raw JSON payload against the schema.
func (s *Schema) ValidateBytes(payload []byte) *ValidationResult {
	return s.toResult(s.compiled.Validate(gojsonschema.NewBytesLoader(payload)))
}

// Validate validates an already-decoded payload against the schema.
func (s *Schema) Validate(payload map[string]interface{}) *ValidationResult {
	return s.toResult(s.compiled.Validate(gojsonschema.NewGoLoader(payload)))
}

func (s *Schema) toResult(result *gojsonschema.Result, err error) *ValidationResult {
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(document)",
				Message: err.Error(),
				Code:    "MALFORMED_PAYLOAD",
			}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errors := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errors = append(errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return &ValidationResult{Valid: false, Errors: errors}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	phonePattern := regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	return phonePattern.MatchString(phone)
}
