// Package config loads the shell's YAML configuration. A file is validated
// against an embedded JSON Schema, decoded over the defaults, then
// overridden from EFFECTSHELL_* environment variables.
package config

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/effectshell/pkg/capabilities"
	"github.com/Mindburn-Labs/effectshell/pkg/keystore"
	"github.com/Mindburn-Labs/effectshell/pkg/kv"
	"github.com/Mindburn-Labs/effectshell/pkg/objectstore"
	"github.com/Mindburn-Labs/effectshell/pkg/observability"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://effectshell.local/schemas/config.schema.json"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EFFECTSHELL_"

// ErrInvalid wraps schema and semantic validation failures.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Log       LogConfig            `yaml:"log"`
	Core      CoreConfig           `yaml:"core"`
	HTTP      HTTPConfig           `yaml:"http"`
	SSE       SSEConfig            `yaml:"sse"`
	Store     objectstore.Config   `yaml:"store"`
	KV        kv.Config            `yaml:"kv"`
	KeyStore  KeyStoreConfig       `yaml:"keystore"`
	Telemetry observability.Config `yaml:"telemetry"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CoreConfig struct {
	Path              string `yaml:"path"`
	MemoryLimitMB     uint32 `yaml:"memory_limit_mb"`
	VersionConstraint string `yaml:"version_constraint"`
}

type HTTPConfig struct {
	Timeout      time.Duration             `yaml:"timeout"`
	MaxBodyBytes int64                     `yaml:"max_body_bytes"`
	UserAgent    string                    `yaml:"user_agent"`
	Egress       capabilities.EgressPolicy `yaml:"egress"`
}

type SSEConfig struct {
	MaxLineBytes int `yaml:"max_line_bytes"`
}

type KeyStoreConfig struct {
	// MasterKey is base64 (standard encoding). An empty key disables the
	// KeyStore capability.
	MasterKey string `yaml:"master_key"`
}

// Key decodes MasterKey. It returns nil, nil when no key is configured.
func (c KeyStoreConfig) Key() ([]byte, error) {
	if c.MasterKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: keystore.master_key is not base64: %w", ErrInvalid, err)
	}
	if len(key) < keystore.MinMasterKeyLength {
		return nil, fmt.Errorf("%w: keystore.master_key must decode to at least %d bytes", ErrInvalid, keystore.MinMasterKeyLength)
	}
	return key, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{
			Timeout:      capabilities.DefaultHTTPTimeout,
			MaxBodyBytes: capabilities.DefaultMaxBodyBytes,
			UserAgent:    "effectshell",
		},
		SSE:       SSEConfig{MaxLineBytes: capabilities.DefaultMaxLineBytes},
		Store:     objectstore.Config{Type: objectstore.TypeSQLite},
		KV:        kv.Config{Type: kv.TypeMemory, PageSize: kv.DefaultPageSize},
		Telemetry: *observability.DefaultConfig(),
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // G304: operator-supplied config path
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := validateSchema(doc); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("config schema load failed: %w", err)
	}
	return c.Compile(schemaURL)
}

// validateSchema checks a decoded YAML document. The document is passed
// through encoding/json so numbers reach the validator as json.Number.
func validateSchema(doc any) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg from the environment, 12-factor style.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("CORE_PATH", &cfg.Core.Path)
	str("CORE_VERSION_CONSTRAINT", &cfg.Core.VersionConstraint)
	str("STORE_PATH", &cfg.Store.Path)
	str("STORE_DSN", &cfg.Store.DSN)
	str("S3_BUCKET", &cfg.Store.S3.Bucket)
	str("KV_TYPE", &cfg.KV.Type)
	str("KV_PATH", &cfg.KV.Path)
	str("REDIS_ADDR", &cfg.KV.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.KV.Redis.Password)
	str("KEYSTORE_MASTER_KEY", &cfg.KeyStore.MasterKey)
	str("OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	if v, ok := lookup(EnvPrefix + "STORE_TYPE"); ok && v != "" {
		cfg.Store.Type = objectstore.Type(v)
	}
	if v, ok := lookup(EnvPrefix + "HTTP_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sHTTP_TIMEOUT: %w", ErrInvalid, EnvPrefix, err)
		}
		cfg.HTTP.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "TELEMETRY_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sTELEMETRY_ENABLED: %w", ErrInvalid, EnvPrefix, err)
		}
		cfg.Telemetry.Enabled = b
	}
	return nil
}

// Validate checks constraints the schema cannot express and values that
// arrived through the environment.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("%w: http.timeout must be positive", ErrInvalid)
	}

	switch c.Store.Type {
	case objectstore.TypeSQLite, objectstore.TypeFS:
	case objectstore.TypePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for postgres", ErrInvalid)
		}
	case objectstore.TypeS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("%w: store.s3.bucket is required", ErrInvalid)
		}
	case objectstore.TypeGCS:
		if c.Store.GCS.Bucket == "" {
			return fmt.Errorf("%w: store.gcs.bucket is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: store.type %q", ErrInvalid, c.Store.Type)
	}

	switch c.KV.Type {
	case kv.TypeMemory, kv.TypeSQLite, kv.TypeRedis:
	default:
		return fmt.Errorf("%w: kv.type %q", ErrInvalid, c.KV.Type)
	}

	if _, err := c.KeyStore.Key(); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a configured level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, s)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.Log.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
