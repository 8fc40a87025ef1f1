// Package crud provides a generic CRUD REST router over arbitrary data
// models. A router translates HTTP list/get/add/update/delete requests into
// calls against a narrow Model interface, merging per-role security policy
// with caller-supplied filtering, sorting, projection and pagination.
package crud

import "context"

// Entity is a dynamically-shaped record as stored and returned by a Model.
type Entity = map[string]any

// Options carries the resolved query parameters for a list operation.
// Page and Size are already validated; Filter is the effective filter with
// any security constraint folded in.
type Options struct {
	Page       int
	Size       int
	Filter     Filter
	Sort       []SortField
	Projection Projection
	Search     string
}

// Skip returns the number of records to skip for the requested page.
func (o Options) Skip() int64 {
	return int64(o.Page) * int64(o.Size)
}

// Limit returns the maximum number of records for the requested page.
func (o Options) Limit() int64 {
	return int64(o.Size)
}

// Model is the data-access contract a store adapter implements per entity
// type. A miss on GetOne, UpdateOne or DeleteOne is reported as (nil, nil),
// never as an error, so the router's 404 handling stays uniform.
type Model interface {
	// GetAll returns the page of entities selected by opts.
	GetAll(ctx context.Context, opts Options) ([]Entity, error)

	// GetOne returns the first entity matching filter, projected, or nil.
	GetOne(ctx context.Context, filter Filter, projection Projection) (Entity, error)

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// AddOne persists payload and returns the stored entity including its id.
	AddOne(ctx context.Context, payload Entity) (Entity, error)

	// UpdateOne applies payload to the entity matching filter and returns the
	// updated entity, or nil when nothing matched.
	UpdateOne(ctx context.Context, filter Filter, payload Entity) (Entity, error)

	// DeleteOne removes the entity matching filter and returns it, or nil
	// when nothing matched.
	DeleteOne(ctx context.Context, filter Filter) (Entity, error)
}
