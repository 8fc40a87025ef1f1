package crud

import (
	"fmt"
	"strings"
)

// ProjectionMode distinguishes inclusive and exclusive field selection.
type ProjectionMode int

const (
	// ProjectAll returns every field (the zero projection)
	ProjectAll ProjectionMode = iota
	// ProjectInclude returns only the listed fields
	ProjectInclude
	// ProjectExclude returns everything but the listed fields
	ProjectExclude
)

// Projection is a normalized field-selection directive. The zero value
// projects all fields. Inclusive and exclusive field lists are never mixed.
type Projection struct {
	Mode   ProjectionMode
	Fields []string
}

// Include builds an inclusive projection over the given fields.
func Include(fields ...string) Projection {
	return Projection{Mode: ProjectInclude, Fields: fields}
}

// Exclude builds an exclusive projection over the given fields.
func Exclude(fields ...string) Projection {
	return Projection{Mode: ProjectExclude, Fields: fields}
}

// ParseProjection parses a projection specification: a space-separated field
// list where every field is either unsigned (inclusive projection) or carries
// a leading "-" (exclusive projection). Mixing the two is an error. An empty
// specification yields the zero projection.
func ParseProjection(spec string) (Projection, error) {
	return ParseProjectionFields(strings.Fields(spec))
}

// ParseProjectionFields is ParseProjection over a pre-split field list.
func ParseProjectionFields(fields []string) (Projection, error) {
	if len(fields) == 0 {
		return Projection{}, nil
	}

	p := Projection{Fields: make([]string, 0, len(fields))}
	for i, field := range fields {
		signed := strings.HasPrefix(field, "-")
		mode := ProjectInclude
		if signed {
			mode = ProjectExclude
			field = field[1:]
		}
		if field == "" {
			return Projection{}, fmt.Errorf("%w: empty field name", ErrMalformedProjection)
		}
		if i == 0 {
			p.Mode = mode
		} else if p.Mode != mode {
			return Projection{}, fmt.Errorf("%w: mixed signed and unsigned fields", ErrMalformedProjection)
		}
		p.Fields = append(p.Fields, field)
	}
	return p, nil
}

// IsZero reports whether the projection selects all fields.
func (p Projection) IsZero() bool {
	return p.Mode == ProjectAll
}

// Allows reports whether the projection retains the named top-level field.
func (p Projection) Allows(field string) bool {
	switch p.Mode {
	case ProjectInclude:
		for _, f := range p.Fields {
			if f == field {
				return true
			}
		}
		return false
	case ProjectExclude:
		for _, f := range p.Fields {
			if f == field {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Apply projects a single entity, returning a copy restricted to the allowed
// top-level fields. The zero projection returns the entity unchanged.
func (p Projection) Apply(e Entity) Entity {
	if p.IsZero() || e == nil {
		return e
	}
	projected := make(Entity, len(e))
	for field, value := range e {
		if p.Allows(field) {
			projected[field] = value
		}
	}
	return projected
}

// merge combines two projections granted by different roles so that the
// result is at least as permissive as either: union of fields when inclusive,
// intersection of omitted fields when exclusive. Projections of different
// modes, or any zero projection, merge to the zero projection since one side
// already allows everything the other hides.
func (p Projection) merge(other Projection) Projection {
	if p.IsZero() || other.IsZero() || p.Mode != other.Mode {
		return Projection{}
	}
	if p.Mode == ProjectInclude {
		seen := make(map[string]bool, len(p.Fields))
		fields := make([]string, 0, len(p.Fields)+len(other.Fields))
		for _, f := range append(append([]string{}, p.Fields...), other.Fields...) {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
		return Projection{Mode: ProjectInclude, Fields: fields}
	}

	inOther := make(map[string]bool, len(other.Fields))
	for _, f := range other.Fields {
		inOther[f] = true
	}
	var fields []string
	for _, f := range p.Fields {
		if inOther[f] {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return Projection{}
	}
	return Projection{Mode: ProjectExclude, Fields: fields}
}
