package kv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

type Config struct {
	Type     string      `yaml:"type" json:"type"`
	Path     string      `yaml:"path" json:"path"`
	PageSize int         `yaml:"page_size" json:"page_size"`
	Redis    RedisConfig `yaml:"redis" json:"redis"`
}

// Open builds the configured Store. The returned close function releases
// the backend and is never nil.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryStore(cfg.PageSize), noop, nil

	case TypeSQLite:
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "kv.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, noop, fmt.Errorf("kv: create %s: %w", dir, err)
			}
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, noop, fmt.Errorf("kv: open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		s, err := NewSQLiteStore(db, cfg.PageSize)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return s, s.Close, nil

	case TypeRedis:
		ns := cfg.Redis.Namespace
		if ns == "" {
			ns = "effectshell:kv:"
		}
		addr := cfg.Redis.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		s := NewRedisStore(addr, cfg.Redis.Password, cfg.Redis.DB, ns, cfg.PageSize)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, noop, fmt.Errorf("kv: redis %s: %w", addr, err)
		}
		return s, s.Close, nil

	default:
		return nil, noop, fmt.Errorf("kv: unknown store type %q", cfg.Type)
	}
}
