package crud

import (
	"context"
	"reflect"
	"testing"
)

func TestResolveNilSchemaAllowsEverything(t *testing.T) {
	var schema SecuritySchema
	filter := Filter{"a": 1}
	decision := schema.Resolve(OpDelete, nil, filter)
	if !decision.Allowed {
		t.Fatal("nil schema must allow")
	}
	if !reflect.DeepEqual(decision.Filter, filter) {
		t.Errorf("filter = %v, want request filter untouched", decision.Filter)
	}
	if decision.Pinned {
		t.Error("nil schema must not pin a projection")
	}
}

func TestResolveDeniesUnknownRole(t *testing.T) {
	schema := SecuritySchema{"ADMIN": {OpRead: Allow()}}
	if schema.Resolve(OpRead, []string{"USER"}, nil).Allowed {
		t.Error("unknown role must be denied")
	}
	if schema.Resolve(OpRead, nil, nil).Allowed {
		t.Error("anonymous must be denied")
	}
}

func TestResolveDeniesUngrantedOperation(t *testing.T) {
	schema := SecuritySchema{"USER": {OpRead: Allow()}}
	if schema.Resolve(OpUpdate, []string{"USER"}, nil).Allowed {
		t.Error("ungranted operation must be denied")
	}
}

func TestResolveConjoinsRoleFilter(t *testing.T) {
	roleFilter := Filter{"department": "sales"}
	schema := SecuritySchema{"USER": {OpRead: AllowWhere(roleFilter)}}
	requestFilter := Filter{"active": true}

	decision := schema.Resolve(OpRead, []string{"USER"}, requestFilter)
	if !decision.Allowed {
		t.Fatal("granted role must allow")
	}
	want := And(requestFilter, roleFilter)
	if !reflect.DeepEqual(decision.Filter, want) {
		t.Errorf("filter = %v, want %v", decision.Filter, want)
	}
}

func TestResolveSecondRoleWidensFilter(t *testing.T) {
	schema := SecuritySchema{
		"A": {OpRead: AllowWhere(Filter{"group": "a"})},
		"B": {OpRead: AllowWhere(Filter{"group": "b"})},
	}
	decision := schema.Resolve(OpRead, []string{"A", "B"}, Filter{"active": true})
	want := And(Filter{"active": true}, Or(Filter{"group": "a"}, Filter{"group": "b"}))
	if !reflect.DeepEqual(decision.Filter, want) {
		t.Errorf("filter = %v, want %v", decision.Filter, want)
	}
}

func TestResolveUnconstrainedRoleLiftsFilter(t *testing.T) {
	schema := SecuritySchema{
		"LIMITED": {OpRead: AllowWhere(Filter{"group": "a"})},
		"FULL":    {OpRead: Allow()},
	}
	requestFilter := Filter{"active": true}
	decision := schema.Resolve(OpRead, []string{"LIMITED", "FULL"}, requestFilter)
	if !reflect.DeepEqual(decision.Filter, requestFilter) {
		t.Errorf("filter = %v, want request filter only", decision.Filter)
	}
}

func TestResolvePinsRoleProjection(t *testing.T) {
	schema := SecuritySchema{
		"USER": {OpRead: Access{Allowed: true, Projection: Exclude("password")}},
	}
	decision := schema.Resolve(OpRead, []string{"USER"}, nil)
	if !decision.Pinned {
		t.Fatal("role projection must pin")
	}
	if !reflect.DeepEqual(decision.Projection, Exclude("password")) {
		t.Errorf("projection = %v, want exclude password", decision.Projection)
	}
}

func TestResolveMergesRoleProjections(t *testing.T) {
	schema := SecuritySchema{
		"A": {OpRead: Access{Allowed: true, Projection: Include("a", "b")}},
		"B": {OpRead: Access{Allowed: true, Projection: Include("b", "c")}},
	}
	decision := schema.Resolve(OpRead, []string{"A", "B"}, nil)
	if !decision.Pinned {
		t.Fatal("merged inclusive projections must stay pinned")
	}
	if !reflect.DeepEqual(decision.Projection, Include("a", "b", "c")) {
		t.Errorf("projection = %v, want union a,b,c", decision.Projection)
	}
}

func TestResolveUnprojectedRoleUnpins(t *testing.T) {
	schema := SecuritySchema{
		"NARROW": {OpRead: Access{Allowed: true, Projection: Include("a")}},
		"WIDE":   {OpRead: Allow()},
	}
	decision := schema.Resolve(OpRead, []string{"NARROW", "WIDE"}, nil)
	if decision.Pinned {
		t.Errorf("projection = %v, want unpinned when a role sees all fields", decision.Projection)
	}
}

func TestRolesContextRoundTrip(t *testing.T) {
	ctx := WithRoles(context.Background(), []string{"ADMIN", "USER"})
	got := RolesFromContext(ctx)
	if !reflect.DeepEqual(got, []string{"ADMIN", "USER"}) {
		t.Errorf("roles = %v", got)
	}
	if RolesFromContext(context.Background()) != nil {
		t.Error("missing roles must be nil")
	}
}
