package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/convrag/config"
)

// VectorStore is a shared L2 cache for embedding vectors.
type VectorStore interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
	Close() error
}

// RedisVectorStore keeps vectors as JSON arrays under prefix+key with a TTL.
type RedisVectorStore struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisVectorStore(cfg config.CacheConfig) (*RedisVectorStore, error) {
	if cfg.Redis.Address == "" {
		return nil, fmt.Errorf("redis cache: address is required")
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "convrag:emb:"
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,
		MaxRetries:   -1,
	})
	return &RedisVectorStore{rc: rc, prefix: prefix, ttl: ttl}, nil
}

func (s *RedisVectorStore) key(k string) string { return s.prefix + k }

func (s *RedisVectorStore) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := s.rc.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, fmt.Errorf("redis cache: decode %s: %w", key, err)
	}
	return vec, true, nil
}

func (s *RedisVectorStore) Set(ctx context.Context, key string, vec []float32) error {
	b, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return s.rc.Set(ctx, s.key(key), b, s.ttl).Err()
}

func (s *RedisVectorStore) Close() error { return s.rc.Close() }
