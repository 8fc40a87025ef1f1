package crud

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common router and adapter errors
var (
	// ErrAccessDenied indicates the security schema denies the operation
	ErrAccessDenied = errors.New("access denied")

	// ErrMalformedProjection indicates a projection mixing signed and
	// unsigned fields
	ErrMalformedProjection = errors.New("malformed projection")

	// ErrMalformedFilter indicates an unparseable filter parameter
	ErrMalformedFilter = errors.New("malformed filter")

	// ErrMalformedSort indicates an unparseable sort parameter
	ErrMalformedSort = errors.New("malformed sort")

	// ErrInvalidPagination indicates page or size out of range
	ErrInvalidPagination = errors.New("invalid pagination parameters")

	// ErrConstraintViolation indicates the store rejected a write, e.g. a
	// uniqueness constraint
	ErrConstraintViolation = errors.New("constraint violation")
)

// ValidationError reports per-field validation failures for a write payload.
type ValidationError struct {
	// Fields maps field name to the validator's message
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
