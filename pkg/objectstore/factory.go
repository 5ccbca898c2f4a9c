package objectstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Type names a backend.
type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeFS       Type = "fs"
	TypeS3       Type = "s3"
	TypeGCS      Type = "gcs"
)

type GCSConfig struct {
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Config selects and configures a backend.
type Config struct {
	Type Type `yaml:"type" json:"type"`
	// Path is the sqlite database file or the fs root directory.
	Path string    `yaml:"path" json:"path"`
	DSN  string    `yaml:"dsn" json:"dsn"`
	S3   S3Config  `yaml:"s3" json:"s3"`
	GCS  GCSConfig `yaml:"gcs" json:"gcs"`
}

// Open builds the configured backend. SQL backends are migrated before use.
// The returned close function releases any underlying connection.
func Open(ctx context.Context, cfg Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case TypeSQLite, "":
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "objects.db")
		}
		//nolint:gosec // G301
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("objectstore: ensure dir: %w", err)
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, nil, fmt.Errorf("objectstore: open sqlite: %w", err)
		}
		s := NewSQLiteStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, s.Close, nil

	case TypePostgres:
		if cfg.DSN == "" {
			return nil, nil, fmt.Errorf("objectstore: postgres dsn is required")
		}
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("objectstore: open postgres: %w", err)
		}
		s := NewPostgresStore(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, s.Close, nil

	case TypeFS:
		dir := cfg.Path
		if dir == "" {
			dir = filepath.Join("data", "objects")
		}
		s, err := NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case TypeS3:
		s, err := NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case TypeGCS:
		return openGCS(ctx, cfg.GCS)

	default:
		return nil, nil, fmt.Errorf("objectstore: unsupported type %q", cfg.Type)
	}
}
