package crud

import "context"

// Operation names the four CRUD operations a security schema can grant.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Access is one grant in a security schema: the operation is allowed, and
// optionally constrained by a filter and a projection. The zero value denies.
type Access struct {
	Allowed    bool
	Filter     Filter
	Projection Projection
}

// Allow grants an operation without constraints.
func Allow() Access {
	return Access{Allowed: true}
}

// AllowWhere grants an operation constrained to entities matching filter.
func AllowWhere(filter Filter) Access {
	return Access{Allowed: true, Filter: filter}
}

// SecuritySchema maps role name to the operations it grants. A missing role
// denies every operation for that role; a nil schema allows everything
// unconditionally (the permissive default for trusted routers).
type SecuritySchema map[string]map[Operation]Access

// Decision is the outcome of merging the security schema with a request.
type Decision struct {
	// Allowed is true iff at least one role grants the operation
	Allowed bool
	// Filter is the request filter conjoined with the policy filter
	Filter Filter
	// Projection is the policy-mandated projection when Pinned
	Projection Projection
	// Pinned reports that policy dictates the projection, overriding any
	// caller-supplied one
	Pinned bool
}

// Resolve computes the effective permission, filter and projection for an
// operation requested by a principal holding roles. Multi-role combination:
// access is the OR of the grants; role filters combine by $or (a second
// granting role widens access, never narrows it) before being conjoined with
// the request filter; role projections merge by union of allowed fields.
// A granting role without a filter lifts the filter constraint entirely.
// Resolve is a pure function of its inputs.
func (s SecuritySchema) Resolve(op Operation, roles []string, requestFilter Filter) Decision {
	if s == nil {
		return Decision{Allowed: true, Filter: requestFilter}
	}

	var (
		granted       bool
		unconstrained bool
		roleFilters   []Filter
		projection    Projection
		pinned        bool
	)
	for _, role := range roles {
		access, ok := s[role][op]
		if !ok || !access.Allowed {
			continue
		}
		if !granted {
			granted = true
			projection = access.Projection
			pinned = !access.Projection.IsZero()
		} else if pinned {
			projection = projection.merge(access.Projection)
			pinned = !projection.IsZero()
		}
		if len(access.Filter) == 0 {
			unconstrained = true
			continue
		}
		roleFilters = append(roleFilters, access.Filter)
	}

	if !granted {
		return Decision{}
	}

	effective := requestFilter
	if !unconstrained && len(roleFilters) > 0 {
		effective = And(requestFilter, Or(roleFilters...))
	}
	return Decision{
		Allowed:    true,
		Filter:     effective,
		Projection: projection,
		Pinned:     pinned,
	}
}

type rolesContextKey struct{}

// WithRoles returns a context carrying the principal's role set, as resolved
// by the authentication middleware.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesContextKey{}, roles)
}

// RolesFromContext returns the principal's role set, or nil when no
// authentication middleware ran.
func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesContextKey{}).([]string)
	return roles
}
