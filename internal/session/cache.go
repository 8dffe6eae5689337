package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/camomilehq/roombot/pkg/logging"
)

const defaultCacheTTL = 24 * time.Hour

// CachedStore layers a best-effort Redis cache over the DynamoDB store.
// Cache failures fall through to DynamoDB; a nil Redis client disables
// caching entirely.
type CachedStore struct {
	store  *Store
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedStore wraps store with a Redis read-through cache.
func NewCachedStore(store *Store, rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if store == nil {
		panic("session: store cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedStore{
		store:  store,
		redis:  rdb,
		tracer: otel.Tracer("roombot.internal.session"),
		ttl:    ttl,
		logger: logger,
	}
}

// Get fetches a session, consulting the cache first.
func (c *CachedStore) Get(ctx context.Context, userKey string) (*Record, error) {
	ctx, span := c.tracer.Start(ctx, "session.get")
	defer span.End()

	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey(userKey)).Bytes()
		if err == nil {
			var rec Record
			if err := json.Unmarshal(data, &rec); err == nil {
				return &rec, nil
			}
			c.logger.Warn("session: corrupt cache entry", "user_key", userKey)
		} else if !errors.Is(err, redis.Nil) {
			span.RecordError(err)
			c.logger.Warn("session: cache read failed", "user_key", userKey, "error", err)
		}
	}

	rec, err := c.store.Get(ctx, userKey)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, rec)
	return rec, nil
}

// Put writes through to DynamoDB and refreshes the cache.
func (c *CachedStore) Put(ctx context.Context, rec *Record) error {
	ctx, span := c.tracer.Start(ctx, "session.put")
	defer span.End()

	if err := c.store.Put(ctx, rec); err != nil {
		return err
	}
	c.fill(ctx, rec)
	return nil
}

// FindByUserID bypasses the cache; index lookups are reminder-job only.
func (c *CachedStore) FindByUserID(ctx context.Context, userID string) (*Record, error) {
	ctx, span := c.tracer.Start(ctx, "session.find_by_user_id")
	defer span.End()

	return c.store.FindByUserID(ctx, userID)
}

func (c *CachedStore) fill(ctx context.Context, rec *Record) {
	if c.redis == nil || rec == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(rec.UserKey), data, c.ttl).Err(); err != nil {
		c.logger.Warn("session: cache write failed", "user_key", rec.UserKey, "error", err)
	}
}

func cacheKey(userKey string) string {
	return fmt.Sprintf("session:%s", userKey)
}
