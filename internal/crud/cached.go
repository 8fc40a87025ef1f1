package crud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"go.crudcast.dev/internal/common/metrics"
)

// cachedModel decorates a Model with a redis read-through cache for single
// entity reads. Writes bump a per-entity version key, which shifts every
// cached read out of scope at once; stale generations age out via TTL.
type cachedModel struct {
	entity string
	ttl    time.Duration
	rdb    *redis.Client
	next   Model
}

// Cached wraps model with a redis cache for GetOne results. The cache is
// best-effort: redis failures are logged and the read falls through to the
// store.
func Cached(entity string, model Model, rdb *redis.Client, ttl time.Duration) Model {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &cachedModel{entity: entity, ttl: ttl, rdb: rdb, next: model}
}

func (m *cachedModel) versionKey() string {
	return "crudcast:model:" + m.entity + ":ver"
}

func (m *cachedModel) entryKey(version string, filter Filter, projection Projection) string {
	sum := sha256.New()
	json.NewEncoder(sum).Encode(filter)
	json.NewEncoder(sum).Encode(projection)
	return fmt.Sprintf("crudcast:model:%s:%s:%s", m.entity, version, hex.EncodeToString(sum.Sum(nil)))
}

func (m *cachedModel) GetOne(ctx context.Context, filter Filter, projection Projection) (Entity, error) {
	version, err := m.rdb.Get(ctx, m.versionKey()).Result()
	if err != nil && err != redis.Nil {
		slog.Debug("Cache unavailable, reading through", "entity", m.entity, "error", err)
		metrics.CacheLookups.WithLabelValues(m.entity, "bypass").Inc()
		return m.next.GetOne(ctx, filter, projection)
	}

	key := m.entryKey(version, filter, projection)
	if cached, err := m.rdb.Get(ctx, key).Result(); err == nil {
		metrics.CacheLookups.WithLabelValues(m.entity, "hit").Inc()
		var entity Entity
		if err := json.Unmarshal([]byte(cached), &entity); err == nil {
			return entity, nil
		}
	}
	metrics.CacheLookups.WithLabelValues(m.entity, "miss").Inc()

	entity, err := m.next.GetOne(ctx, filter, projection)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(entity); err == nil {
		if err := m.rdb.Set(ctx, key, encoded, m.ttl).Err(); err != nil {
			slog.Debug("Cache store failed", "entity", m.entity, "error", err)
		}
	}
	return entity, nil
}

// invalidate bumps the entity version so subsequent reads miss.
func (m *cachedModel) invalidate(ctx context.Context) {
	if err := m.rdb.Incr(ctx, m.versionKey()).Err(); err != nil {
		slog.Warn("Cache invalidation failed", "entity", m.entity, "error", err)
	}
}

func (m *cachedModel) GetAll(ctx context.Context, opts Options) ([]Entity, error) {
	return m.next.GetAll(ctx, opts)
}

func (m *cachedModel) Count(ctx context.Context, filter Filter) (int64, error) {
	return m.next.Count(ctx, filter)
}

func (m *cachedModel) AddOne(ctx context.Context, payload Entity) (Entity, error) {
	entity, err := m.next.AddOne(ctx, payload)
	if err == nil {
		m.invalidate(ctx)
	}
	return entity, err
}

func (m *cachedModel) UpdateOne(ctx context.Context, filter Filter, payload Entity) (Entity, error) {
	entity, err := m.next.UpdateOne(ctx, filter, payload)
	if err == nil && entity != nil {
		m.invalidate(ctx)
	}
	return entity, err
}

func (m *cachedModel) DeleteOne(ctx context.Context, filter Filter) (Entity, error) {
	entity, err := m.next.DeleteOne(ctx, filter)
	if err == nil && entity != nil {
		m.invalidate(ctx)
	}
	return entity, err
}
