package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// BodySchema is a compiled JSON Schema for a request body.
type BodySchema struct {
	name   string
	schema *gojsonschema.Schema
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(name, src string) (*BodySchema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &BodySchema{name: name, schema: schema}, nil
}

// MustCompileSchema is like CompileSchema but panics on error.
// Schemas are compiled at startup from constants.
func MustCompileSchema(name, src string) *BodySchema {
	s, err := CompileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks body against the schema. It returns the offending
// fields, sorted, or an error if body is not JSON.
func (s *BodySchema) Validate(body []byte) ([]string, error) {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}

	var fields []string
	for _, e := range result.Errors() {
		field := fieldOf(e)
		if !slices.Contains(fields, field) {
			fields = append(fields, field)
		}
	}
	slices.Sort(fields)
	return fields, nil
}

// fieldOf names the property a schema error is about. Errors such as
// "required" and "additionalProperties" report the parent as their field
// and the property in their details.
func fieldOf(e gojsonschema.ResultError) string {
	field := e.Field()
	prop, ok := e.Details()["property"].(string)
	switch {
	case !ok || prop == "":
		return field
	case field == "(root)" || field == "":
		return prop
	case field == prop || strings.HasSuffix(field, "."+prop):
		return field
	}
	return field + "." + prop
}

// ValidateBody returns middleware that rejects request bodies not matching
// schema with 400 VALIDATION_ERROR. The body is replayed for the handler.
func ValidateBody(schema *BodySchema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body could not be read")
				return
			}
			_ = r.Body.Close()

			fields, err := schema.Validate(body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON object")
				return
			}
			if len(fields) > 0 {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body failed validation", fields...)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
