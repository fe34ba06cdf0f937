package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "vextract:cache"

// RedisStore keeps cache entries in Redis with server-side TTL expiry, so
// multiple server instances can share one response cache. Backend failures
// degrade to cache misses; they never fail the request.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *log.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *log.Logger) *RedisStore {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: defaultRedisPrefix,
		logger: logger,
	}
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (json.RawMessage, bool) {
	payload, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Printf("WARN: redis cache get: %v", err)
		return nil, false
	}
	return json.RawMessage(payload), true
}

func (s *RedisStore) Set(ctx context.Context, fingerprint string, payload json.RawMessage) {
	if err := s.client.Set(ctx, s.key(fingerprint), []byte(payload), s.ttl).Err(); err != nil {
		s.logger.Printf("WARN: redis cache set: %v", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, fingerprint string) {
	if err := s.client.Del(ctx, s.key(fingerprint)).Err(); err != nil {
		s.logger.Printf("WARN: redis cache delete: %v", err)
	}
}

func (s *RedisStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}
