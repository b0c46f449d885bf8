package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voyago/voyago-travel-assistant/pkg/errors"
	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/resilience"
)

// keyPrefix namespaces last-good response keys in Redis
const keyPrefix = "last_good:"

// RedisStore persists last-good provider responses in Redis so that
// cached-response fallbacks survive process restarts. It implements
// resilience.PersistentStore.
type RedisStore struct {
	client *RedisClient
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisStore creates a store whose entries expire after ttl. The ttl
// should match the response cache freshness window so Redis never serves
// an entry the in-memory tier would reject.
func NewRedisStore(client *RedisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logging.GetLogger(),
	}
}

// Put stores a cache entry under the fingerprint key
func (s *RedisStore) Put(ctx context.Context, key string, entry resilience.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.NewInternalError("failed to serialize cache entry").WithCause(err)
	}

	if err := s.client.Client().Set(ctx, keyPrefix+key, payload, s.ttl).Err(); err != nil {
		return errors.NewInternalError("failed to store cache entry").WithCause(err)
	}
	return nil
}

// Get retrieves a cache entry by fingerprint key. A missing key returns
// a not-found error.
func (s *RedisStore) Get(ctx context.Context, key string) (*resilience.CacheEntry, error) {
	payload, err := s.client.Client().Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, errors.NewNotFoundError("cached response")
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load cache entry").WithCause(err)
	}

	var entry resilience.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		// Corrupt entries are dropped rather than served.
		s.logger.Warn("Discarding corrupt cache entry", "key", key, "error", err)
		_ = s.client.Client().Del(ctx, keyPrefix+key).Err()
		return nil, errors.NewNotFoundError("cached response")
	}
	return &entry, nil
}

// Delete removes a cache entry
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Client().Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.NewInternalError("failed to delete cache entry").WithCause(err)
	}
	return nil
}
