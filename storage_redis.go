package outfit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys in a shared Redis.
const DefaultRedisPrefix = "outfit:session:"

// RedisStorage keeps session keys in Redis. Writes use MULTI/EXEC so both
// keys change together.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStorage.
type RedisOption func(*RedisStorage)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStorage) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires stored keys after ttl. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStorage) {
		s.ttl = ttl
	}
}

// NewRedisStorage wraps an existing client. The caller owns the client.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisOption) *RedisStorage {
	s := &RedisStorage{
		client: client,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + k
}

// Get implements Storage.
func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// SetMany implements Storage.
func (s *RedisStorage) SetMany(ctx context.Context, kv map[string]string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range kv {
			pipe.Set(ctx, s.key(k), v, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis: %v", ErrStorePersist, err)
	}
	return nil
}

// DeleteMany implements Storage.
func (s *RedisStorage) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: redis: %v", ErrStorePersist, err)
	}
	return nil
}
