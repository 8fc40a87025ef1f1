package crud

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filter is an opaque, store-specific query fragment: field to value, field
// to operator object, or the logical combinators $and / $or. The router never
// interprets a filter beyond combining it with the security filter.
type Filter = map[string]any

// And conjoins the given filters, skipping nil ones. A single surviving
// filter is returned as-is; two or more are wrapped in an $and combinator.
func And(filters ...Filter) Filter {
	merged := make([]any, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			merged = append(merged, f)
		}
	}
	switch len(merged) {
	case 0:
		return nil
	case 1:
		return merged[0].(Filter)
	default:
		return Filter{"$and": merged}
	}
}

// Or disjoins the given filters, skipping nil ones.
func Or(filters ...Filter) Filter {
	merged := make([]any, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			merged = append(merged, f)
		}
	}
	switch len(merged) {
	case 0:
		return nil
	case 1:
		return merged[0].(Filter)
	default:
		return Filter{"$or": merged}
	}
}

// ParseFilter decodes the filter query parameter, a URL-encoded JSON object.
// An empty parameter yields a nil filter.
func ParseFilter(raw string) (Filter, error) {
	if raw == "" {
		return nil, nil
	}
	var f Filter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedFilter, err)
	}
	return f, nil
}

// SortField is one element of a resolved sort order.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSort resolves the sort query parameter. Two forms are accepted: a
// comma-separated list of fields ("name,-createdAt" or "name:desc"), or a
// JSON object mapping field to direction (1/-1 or "asc"/"desc"). The object
// form is normalized to field-name order since JSON objects carry none.
func ParseSort(raw string) ([]SortField, error) {
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var spec map[string]any
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedSort, err)
		}
		names := make([]string, 0, len(spec))
		for name := range spec {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := make([]SortField, 0, len(names))
		for _, name := range names {
			desc, err := descending(spec[name])
			if err != nil {
				return nil, err
			}
			fields = append(fields, SortField{Field: name, Descending: desc})
		}
		return fields, nil
	}

	var fields []SortField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := SortField{Field: part}
		if name, dir, ok := strings.Cut(part, ":"); ok {
			desc, err := descending(dir)
			if err != nil {
				return nil, err
			}
			field = SortField{Field: name, Descending: desc}
		} else if strings.HasPrefix(part, "-") {
			field = SortField{Field: part[1:], Descending: true}
		}
		if field.Field == "" {
			return nil, fmt.Errorf("%w: empty field", ErrMalformedSort)
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func descending(direction any) (bool, error) {
	switch d := direction.(type) {
	case string:
		switch strings.ToLower(d) {
		case "asc", "1", "ascending":
			return false, nil
		case "desc", "-1", "descending":
			return true, nil
		}
	case float64:
		if d == 1 {
			return false, nil
		}
		if d == -1 {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: unknown direction %v", ErrMalformedSort, direction)
}
