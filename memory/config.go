package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Config holds all memory subsystem settings. Build one with DefaultConfig
// and functional options, or via NewConfig which also applies environment
// variables and validates the result.
type Config struct {
	// Namespace is the default namespace for entries stored without an
	// explicit one.
	Namespace string `json:"namespace" yaml:"namespace"`

	// Directory holds the durable backend's database file. Ignored when
	// InMemoryOnly is set.
	Directory string `json:"directory" yaml:"directory"`

	// InMemoryOnly skips the durable backend entirely. Intended for tests
	// and ephemeral deployments; note this is different from fallback mode,
	// which is entered only after a durable initialization failure.
	InMemoryOnly bool `json:"inMemoryOnly" yaml:"inMemoryOnly"`

	// DefaultTTL applies to entries stored without an explicit TTL and
	// without a partition default. Zero means no expiry.
	DefaultTTL time.Duration `json:"defaultTtl" yaml:"defaultTtl"`

	Cache CacheConfig `json:"cache" yaml:"cache"`
	GC    GCConfig    `json:"gc" yaml:"gc"`

	// Codec selects the default serialization codec: "json" or "msgpack".
	Codec string `json:"codec" yaml:"codec"`

	LogLevel string `json:"logLevel" yaml:"logLevel"`

	// Logger overrides the default logger. Not loadable from file or env.
	Logger Logger `json:"-" yaml:"-"`

	// MetricsRegisterer receives the subsystem's Prometheus collectors.
	// Nil disables metrics registration.
	MetricsRegisterer prometheus.Registerer `json:"-" yaml:"-"`
}

// CacheConfig bounds the in-process LRU cache.
type CacheConfig struct {
	// MaxBytes is the resident byte budget. Zero disables the byte bound.
	MaxBytes int64 `json:"maxBytes" yaml:"maxBytes"`
	// MaxEntries bounds the entry count. Zero disables the count bound.
	MaxEntries int `json:"maxEntries" yaml:"maxEntries"`
	// FlushInterval is the write-back flush period for dirty entries.
	FlushInterval time.Duration `json:"flushInterval" yaml:"flushInterval"`
}

// GCConfig controls the periodic TTL sweep.
type GCConfig struct {
	// Interval between sweeps. Zero disables the periodic sweep; lazy
	// expiry on read still applies.
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Option mutates a Config during construction.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults for a single
// local process. Override with options or OPENSWARM_* environment variables.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "default",
		Directory: ".openswarm",
		Cache: CacheConfig{
			MaxBytes:      8 << 20, // 8MB resident budget
			MaxEntries:    0,
			FlushInterval: 5 * time.Second,
		},
		GC: GCConfig{
			Interval: 30 * time.Second,
		},
		Codec:    "json",
		LogLevel: "info",
	}
}

// NewConfig builds a Config from defaults, options (in order), then
// environment variables, and validates it.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overlays OPENSWARM_* environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("OPENSWARM_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("OPENSWARM_DIRECTORY"); v != "" {
		c.Directory = v
	}
	if v := os.Getenv("OPENSWARM_IN_MEMORY"); v != "" {
		c.InMemoryOnly = parseBool(v)
	}
	if v := os.Getenv("OPENSWARM_DEFAULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DefaultTTL = d
		}
	}
	if v := os.Getenv("OPENSWARM_CACHE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Cache.MaxBytes = n
		}
	}
	if v := os.Getenv("OPENSWARM_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.MaxEntries = n
		}
	}
	if v := os.Getenv("OPENSWARM_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.FlushInterval = d
		}
	}
	if v := os.Getenv("OPENSWARM_GC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GC.Interval = d
		}
	}
	if v := os.Getenv("OPENSWARM_CODEC"); v != "" {
		c.Codec = v
	}
	if v := os.Getenv("OPENSWARM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// LoadFromFile overlays settings from a JSON or YAML file.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	// yaml.v3 parses JSON as well, so one decoder covers both extensions.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cleanPath, ErrInvalidConfiguration)
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return &MemoryError{Op: "Config.Validate", Kind: "config", Err: ErrInvalidConfiguration}
	}
	if !c.InMemoryOnly && c.Directory == "" {
		return &MemoryError{
			Op:   "Config.Validate",
			Kind: "config",
			ID:   "directory",
			Err:  ErrInvalidConfiguration,
		}
	}
	if c.Cache.MaxBytes < 0 || c.Cache.MaxEntries < 0 {
		return &MemoryError{
			Op:   "Config.Validate",
			Kind: "config",
			ID:   "cache",
			Err:  ErrInvalidConfiguration,
		}
	}
	switch c.Codec {
	case "", "json", "msgpack":
	default:
		return &MemoryError{
			Op:   "Config.Validate",
			Kind: "config",
			ID:   c.Codec,
			Err:  ErrInvalidConfiguration,
		}
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Functional options

// WithNamespace sets the default namespace for stored entries.
func WithNamespace(namespace string) Option {
	return func(c *Config) error {
		c.Namespace = namespace
		return nil
	}
}

// WithDirectory sets the durable backend's data directory.
func WithDirectory(dir string) Option {
	return func(c *Config) error {
		c.Directory = dir
		return nil
	}
}

// WithInMemoryOnly skips the durable backend entirely.
func WithInMemoryOnly() Option {
	return func(c *Config) error {
		c.InMemoryOnly = true
		return nil
	}
}

// WithDefaultTTL sets the TTL applied to entries stored without one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		c.DefaultTTL = ttl
		return nil
	}
}

// WithCacheSize bounds the cache byte budget.
func WithCacheSize(maxBytes int64) Option {
	return func(c *Config) error {
		if maxBytes < 0 {
			return &MemoryError{Op: "WithCacheSize", Kind: "config", Err: ErrInvalidConfiguration}
		}
		c.Cache.MaxBytes = maxBytes
		return nil
	}
}

// WithCacheEntries bounds the cache entry count.
func WithCacheEntries(maxEntries int) Option {
	return func(c *Config) error {
		if maxEntries < 0 {
			return &MemoryError{Op: "WithCacheEntries", Kind: "config", Err: ErrInvalidConfiguration}
		}
		c.Cache.MaxEntries = maxEntries
		return nil
	}
}

// WithFlushInterval sets the write-back flush period.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Config) error {
		c.Cache.FlushInterval = d
		return nil
	}
}

// WithGCInterval sets the TTL sweep period. Zero disables the sweep.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) error {
		c.GC.Interval = d
		return nil
	}
}

// WithCodec selects the default serialization codec ("json" or "msgpack").
func WithCodec(name string) Option {
	return func(c *Config) error {
		c.Codec = name
		return nil
	}
}

// WithLogger injects a logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithLogLevel sets the level used when the default logger is constructed.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

// WithMetricsRegisterer registers the subsystem's Prometheus collectors on r.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(c *Config) error {
		c.MetricsRegisterer = r
		return nil
	}
}
