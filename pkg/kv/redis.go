package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps keys under a namespace in a Redis database. Set and
// Delete return the replaced value atomically through SET GET and GETDEL,
// which need Redis 6.2 or later. ListKeys passes SCAN cursors through
// unchanged; SCAN guarantees termination and at-least-once delivery of keys
// present for the whole scan.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	pageSize  int
}

// NewRedisStore connects to addr. Keys are stored as namespace+key.
func NewRedisStore(addr, password string, db int, namespace string, pageSize int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreWithClient(rdb, namespace, pageSize)
}

func NewRedisStoreWithClient(client redis.UniversalClient, namespace string, pageSize int) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, pageSize: pageSize}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return bytesResult(s.client.Get(ctx, s.namespace+key).Bytes())
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if value == nil {
		value = []byte{}
	}
	prev, err := s.client.SetArgs(ctx, s.namespace+key, value, redis.SetArgs{Get: true}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: redis set %q: %w", key, err)
	}
	return []byte(prev), true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) ([]byte, bool, error) {
	return bytesResult(s.client.GetDel(ctx, s.namespace+key).Bytes())
}

func bytesResult(b []byte, err error) ([]byte, bool, error) {
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: redis: %w", err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.namespace+key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) ListKeys(ctx context.Context, prefix string, cursor uint64) ([]string, uint64, error) {
	match := escapeGlob(s.namespace+prefix) + "*"
	raw, next, err := s.client.Scan(ctx, cursor, match, int64(pageSize(s.pageSize))).Result()
	if err != nil {
		if strings.Contains(err.Error(), "invalid cursor") {
			return nil, 0, fmt.Errorf("%w: %d", ErrCursorNotFound, cursor)
		}
		return nil, 0, fmt.Errorf("kv: redis scan: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, s.namespace))
	}
	return keys, next, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
