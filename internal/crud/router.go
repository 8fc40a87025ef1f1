package crud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go.crudcast.dev/internal/api"
)

// WriteHook is invoked after every successful write, with the id and the
// persisted entity (nil for deletes without returnValue). Hooks must not
// block; failures belong to the hook, never to the HTTP response.
type WriteHook func(ctx context.Context, op Operation, id string, entity Entity)

// Config is the immutable per-router configuration. It is read on every
// request and never mutated after construction.
type Config struct {
	// Entity names the entity type, used in logs and change events
	Entity string

	// IDProperty is the identifier field name, "id" when empty
	IDProperty string

	// Security is the role/operation permission table; nil allows everything
	Security SecuritySchema

	// Validation runs on create and update payloads
	Validation ValidationSchema

	// DefaultProjections are the per-operation base projections; a role
	// projection overrides them, a caller projection never does
	DefaultProjections map[Operation]Projection

	// ReturnValue echoes the persisted, re-fetched, projected entity from
	// write operations instead of an empty body
	ReturnValue bool

	// OnWrite, when set, observes successful writes
	OnWrite WriteHook
}

// Router serves the five CRUD endpoints for one entity type over a Model.
type Router struct {
	model Model
	cfg   Config
}

// NewRouter builds a CRUD router for model. The configuration is captured as
// given; callers must not mutate it afterwards.
func NewRouter(model Model, cfg Config) *Router {
	if cfg.IDProperty == "" {
		cfg.IDProperty = "id"
	}
	return &Router{model: model, cfg: cfg}
}

// Routes returns the chi router serving the CRUD endpoints.
func (rt *Router) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", rt.List)
	r.Post("/", rt.Create)
	r.Get("/{id}", rt.Get)
	r.Put("/{id}", rt.Update)
	r.Delete("/{id}", rt.Delete)

	return r
}

// List handles GET /: security merge, filter/sort/search/projection
// composition, pagination headers.
func (rt *Router) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := ParsePage(query)
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}
	requestFilter, err := ParseFilter(query.Get("filter"))
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}
	sortFields, err := ParseSort(query.Get("sort"))
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}
	requestProjection, err := ParseProjection(query.Get("projection"))
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}

	decision := rt.cfg.Security.Resolve(OpRead, RolesFromContext(r.Context()), requestFilter)
	if !decision.Allowed {
		api.WriteForbidden(w, "Access is denied")
		return
	}

	opts := Options{
		Page:       page.Number,
		Size:       page.Size,
		Filter:     decision.Filter,
		Sort:       sortFields,
		Projection: rt.effectiveProjection(OpRead, decision, requestProjection),
		Search:     query.Get("search"),
	}

	entities, err := rt.model.GetAll(r.Context(), opts)
	if err != nil {
		rt.writeStoreError(w, r, "getAll", err)
		return
	}
	total, err := rt.model.Count(r.Context(), decision.Filter)
	if err != nil {
		rt.writeStoreError(w, r, "count", err)
		return
	}

	if entities == nil {
		entities = []Entity{}
	}
	w.Header().Set("Link", page.LinkHeader(requestBaseURL(r), total))
	w.Header().Set("X-Total-Count", TotalCountHeader(total))
	api.WriteJSON(w, http.StatusOK, entities)
}

// Get handles GET /{id}.
func (rt *Router) Get(w http.ResponseWriter, r *http.Request) {
	requestProjection, err := ParseProjection(r.URL.Query().Get("projection"))
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}

	decision := rt.cfg.Security.Resolve(OpRead, RolesFromContext(r.Context()), rt.idFilter(r))
	if !decision.Allowed {
		api.WriteForbidden(w, "Access is denied")
		return
	}

	entity, err := rt.model.GetOne(r.Context(), decision.Filter, rt.effectiveProjection(OpRead, decision, requestProjection))
	if err != nil {
		rt.writeStoreError(w, r, "getOne", err)
		return
	}
	if entity == nil {
		api.WriteNotFound(w, "Entity not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, entity)
}

// Create handles POST /: the body is restricted to the fields the caller may
// set, validated, persisted, and answered with 201 and a Location header.
func (rt *Router) Create(w http.ResponseWriter, r *http.Request) {
	roles := RolesFromContext(r.Context())
	decision := rt.cfg.Security.Resolve(OpCreate, roles, nil)
	if !decision.Allowed {
		api.WriteForbidden(w, "Access is denied")
		return
	}

	payload, ok := rt.decodePayload(w, r, OpCreate, decision)
	if !ok {
		return
	}

	created, err := rt.model.AddOne(r.Context(), payload)
	if err != nil {
		rt.writeStoreError(w, r, "addOne", err)
		return
	}

	id := entityID(created, rt.cfg.IDProperty)
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+id)
	rt.notify(r.Context(), OpCreate, id, created)

	if !rt.cfg.ReturnValue {
		api.WriteJSON(w, http.StatusCreated, Entity{})
		return
	}
	echo, err := rt.fetchForEcho(r, roles, id)
	if err != nil {
		rt.writeStoreError(w, r, "getOne", err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, echo)
}

// Update handles PUT /{id}. The update grant gates the operation; the read
// grant shapes any echoed value.
func (rt *Router) Update(w http.ResponseWriter, r *http.Request) {
	roles := RolesFromContext(r.Context())
	decision := rt.cfg.Security.Resolve(OpUpdate, roles, rt.idFilter(r))
	if !decision.Allowed {
		api.WriteForbidden(w, "Access is denied")
		return
	}

	payload, ok := rt.decodePayload(w, r, OpUpdate, decision)
	if !ok {
		return
	}

	updated, err := rt.model.UpdateOne(r.Context(), decision.Filter, payload)
	if err != nil {
		rt.writeStoreError(w, r, "updateOne", err)
		return
	}
	if updated == nil {
		api.WriteNotFound(w, "Entity not found")
		return
	}

	id := chi.URLParam(r, "id")
	rt.notify(r.Context(), OpUpdate, id, updated)

	if !rt.cfg.ReturnValue {
		api.WriteJSON(w, http.StatusOK, updated)
		return
	}
	echo, err := rt.fetchForEcho(r, roles, id)
	if err != nil {
		rt.writeStoreError(w, r, "getOne", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, echo)
}

// Delete handles DELETE /{id}: 204 on success, or 200 with the deleted
// entity under the read projection when returnValue is configured.
func (rt *Router) Delete(w http.ResponseWriter, r *http.Request) {
	roles := RolesFromContext(r.Context())
	decision := rt.cfg.Security.Resolve(OpDelete, roles, rt.idFilter(r))
	if !decision.Allowed {
		api.WriteForbidden(w, "Access is denied")
		return
	}

	deleted, err := rt.model.DeleteOne(r.Context(), decision.Filter)
	if err != nil {
		rt.writeStoreError(w, r, "deleteOne", err)
		return
	}
	if deleted == nil {
		api.WriteNotFound(w, "Entity not found")
		return
	}

	id := chi.URLParam(r, "id")
	rt.notify(r.Context(), OpDelete, id, deleted)

	if !rt.cfg.ReturnValue {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// A deleted entity cannot be re-fetched; project what the adapter
	// returned under the read grant.
	readDecision := rt.cfg.Security.Resolve(OpRead, roles, nil)
	projection := rt.effectiveProjection(OpRead, readDecision, Projection{})
	api.WriteJSON(w, http.StatusOK, projection.Apply(deleted))
}

// decodePayload reads the JSON body, drops fields the caller may not set,
// and validates what remains. It writes the error response itself and
// reports success through the second return value.
func (rt *Router) decodePayload(w http.ResponseWriter, r *http.Request, op Operation, decision Decision) (Entity, bool) {
	var payload Entity
	if err := api.DecodeJSON(r, &payload); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return nil, false
	}
	if payload == nil {
		payload = Entity{}
	}

	// Fields outside the granted projection are dropped, not rejected.
	payload = rt.effectiveProjection(op, decision, Projection{}).Apply(payload)

	if err := rt.cfg.Validation.Validate(payload); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			api.WriteValidationFailed(w, vErr.Fields)
		} else {
			api.WriteBadRequest(w, err.Error())
		}
		return nil, false
	}
	return payload, true
}

// fetchForEcho re-reads the written entity under the read grant so write
// responses never leak fields the caller cannot read.
func (rt *Router) fetchForEcho(r *http.Request, roles []string, id string) (Entity, error) {
	decision := rt.cfg.Security.Resolve(OpRead, roles, Filter{rt.cfg.IDProperty: id})
	if !decision.Allowed {
		return Entity{}, nil
	}
	entity, err := rt.model.GetOne(r.Context(), decision.Filter, rt.effectiveProjection(OpRead, decision, Projection{}))
	if err != nil {
		return nil, err
	}
	if entity == nil {
		entity = Entity{}
	}
	return entity, nil
}

// effectiveProjection resolves projection precedence: a policy-pinned
// projection wins, then the configured per-operation default, and only when
// neither constrains the operation does the caller's projection apply.
func (rt *Router) effectiveProjection(op Operation, decision Decision, requested Projection) Projection {
	if decision.Pinned {
		return decision.Projection
	}
	if p, ok := rt.cfg.DefaultProjections[op]; ok && !p.IsZero() {
		return p
	}
	return requested
}

func (rt *Router) idFilter(r *http.Request) Filter {
	return Filter{rt.cfg.IDProperty: chi.URLParam(r, "id")}
}

func (rt *Router) notify(ctx context.Context, op Operation, id string, entity Entity) {
	if rt.cfg.OnWrite != nil {
		rt.cfg.OnWrite(ctx, op, id, entity)
	}
}

// writeStoreError is the single place mapping adapter errors to HTTP
// statuses. Constraint violations surface as 409; anything else is logged
// and answered with an opaque 500.
func (rt *Router) writeStoreError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	if errors.Is(err, ErrConstraintViolation) {
		api.WriteConflict(w, err.Error())
		return
	}
	slog.Error("Store operation failed",
		"entity", rt.cfg.Entity,
		"operation", operation,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	api.WriteInternalError(w, "Internal server error")
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

// entityID renders an entity's identifier for headers and change events.
func entityID(e Entity, idProperty string) string {
	switch id := e[idProperty].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}
