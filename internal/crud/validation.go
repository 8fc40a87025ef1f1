package crud

import (
	"fmt"
	"regexp"
)

// Validator checks one field value and returns a message when the value is
// rejected, or "" when it passes. The value is nil when the field is absent
// from the payload.
type Validator func(value any) string

// ValidationSchema maps field name to its validator. Validation runs only on
// create and update payloads, never on reads or deletes.
type ValidationSchema map[string]Validator

// Validate runs every configured validator against the payload and returns a
// ValidationError collecting all failures, or nil when the payload passes.
func (s ValidationSchema) Validate(payload Entity) error {
	if len(s) == 0 {
		return nil
	}
	var failed map[string]string
	for field, validate := range s {
		if msg := validate(payload[field]); msg != "" {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[field] = msg
		}
	}
	if failed == nil {
		return nil
	}
	return &ValidationError{Fields: failed}
}

// Required rejects absent or empty values.
func Required(message string) Validator {
	return func(value any) string {
		if value == nil || value == "" {
			return message
		}
		return ""
	}
}

// Matches rejects string values not matching the pattern. Absent values pass;
// combine with Required when the field is mandatory.
func Matches(pattern, message string) Validator {
	re := regexp.MustCompile(pattern)
	return func(value any) string {
		if value == nil {
			return ""
		}
		s, ok := value.(string)
		if !ok {
			s = fmt.Sprint(value)
		}
		if !re.MatchString(s) {
			return message
		}
		return ""
	}
}
