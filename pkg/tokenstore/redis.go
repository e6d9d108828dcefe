package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key used when none is configured.
const DefaultRedisKey = "freshbooks:token"

// RedisStore keeps the token as a single JSON value in Redis. The key has no
// TTL: the refresh token outlives the access token expiry.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		redis: redisClient,
		key:   key,
	}
}

// Key returns the Redis key holding the token.
func (s *RedisStore) Key() string {
	return s.key
}

// Load reads the token from Redis.
func (s *RedisStore) Load(ctx context.Context) (*Token, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.New(apperr.ErrIO, "load token from redis", fmt.Errorf("key %q not found", s.key))
		}
		return nil, apperr.New(apperr.ErrIO, "load token from redis", err)
	}
	return decode("load token from redis", data)
}

// Save overwrites the token in Redis.
func (s *RedisStore) Save(ctx context.Context, token *Token) error {
	data, err := encode("save token to redis", token)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return apperr.New(apperr.ErrIO, "save token to redis", err)
	}
	return nil
}
