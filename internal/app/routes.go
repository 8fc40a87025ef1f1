package app

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"go.crudcast.dev/internal/auth"
	"go.crudcast.dev/internal/crud"
)

// ModelOptions selects the decorators wrapped around every store model.
type ModelOptions struct {
	// Redis enables the read-through cache when non-nil
	Redis    *redis.Client
	RedisTTL time.Duration

	// Breaker wraps models in a circuit breaker when non-nil
	Breaker *crud.BreakerConfig
}

// Decorate wraps the raw store models with instrumentation and the optional
// cache and breaker layers. Order: breaker outermost, then cache, then
// metrics, then the store.
func Decorate(models map[string]crud.Model, opts ModelOptions) map[string]crud.Model {
	decorated := make(map[string]crud.Model, len(models))
	for entity, model := range models {
		m := crud.Instrumented(entity, model)
		if opts.Redis != nil {
			m = crud.Cached(entity, m, opts.Redis, opts.RedisTTL)
		}
		if opts.Breaker != nil {
			m = crud.WithBreaker(entity, m, *opts.Breaker)
		}
		decorated[entity] = m
	}
	return decorated
}

// Mount attaches a CRUD router per entity under its name. The hook factory
// builds the per-entity write observer; a nil factory disables write hooks.
func Mount(r chi.Router, models map[string]crud.Model, hook func(entity string) crud.WriteHook) {
	onWrite := func(entity string) crud.WriteHook {
		if hook == nil {
			return nil
		}
		return hook(entity)
	}

	r.Mount("/users", crud.NewRouter(models[EntityUsers], crud.Config{
		Entity:             EntityUsers,
		Security:           UserSecurity(),
		Validation:         UserValidation(),
		DefaultProjections: UserDefaultProjections(),
		ReturnValue:        true,
		OnWrite:            onWrite(EntityUsers),
	}).Routes())

	r.Mount("/departments", crud.NewRouter(models[EntityDepartments], crud.Config{
		Entity:     EntityDepartments,
		Security:   DepartmentSecurity(),
		Validation: DepartmentValidation(),
		OnWrite:    onWrite(EntityDepartments),
	}).Routes())

	r.Mount("/roles", crud.NewRouter(models[EntityRoles], crud.Config{
		Entity:     EntityRoles,
		Security:   RoleSecurity(),
		Validation: RoleValidation(),
		OnWrite:    onWrite(EntityRoles),
	}).Routes())
}

// UserLookup adapts the users model for the login handler. The lookup runs
// against the raw model so the password hash stays visible to it.
func UserLookup(users crud.Model) auth.UserLookup {
	return func(ctx context.Context, username string) (crud.Entity, error) {
		return users.GetOne(ctx, crud.Filter{"email": username}, crud.Projection{})
	}
}
