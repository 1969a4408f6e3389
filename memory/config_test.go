package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "default", cfg.Namespace)
	assert.Equal(t, ".openswarm", cfg.Directory)
	assert.Equal(t, "json", cfg.Codec)
	assert.Greater(t, cfg.Cache.MaxBytes, int64(0))
	assert.NoError(t, cfg.Validate())
}

func TestNewConfigOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithNamespace("custom"),
		WithDirectory("/tmp/openswarm-test"),
		WithDefaultTTL(time.Minute),
		WithCacheSize(1024),
		WithCacheEntries(10),
		WithCodec("msgpack"),
	)
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Namespace)
	assert.Equal(t, time.Minute, cfg.DefaultTTL)
	assert.Equal(t, int64(1024), cfg.Cache.MaxBytes)
	assert.Equal(t, 10, cfg.Cache.MaxEntries)
	assert.Equal(t, "msgpack", cfg.Codec)
}

func TestConfigInvalidOptions(t *testing.T) {
	_, err := NewConfig(WithCacheSize(-1))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewConfig(WithCacheEntries(-1))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, true},
		{"negative cache bytes", func(c *Config) { c.Cache.MaxBytes = -1 }, true},
		{"unknown codec", func(c *Config) { c.Codec = "protobuf" }, true},
		{"no directory with durable backend", func(c *Config) { c.Directory = "" }, true},
		{"no directory in memory only", func(c *Config) { c.Directory = ""; c.InMemoryOnly = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OPENSWARM_NAMESPACE", "from-env")
	t.Setenv("OPENSWARM_DEFAULT_TTL", "90s")
	t.Setenv("OPENSWARM_IN_MEMORY", "true")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Namespace)
	assert.Equal(t, 90*time.Second, cfg.DefaultTTL)
	assert.True(t, cfg.InMemoryOnly)
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("namespace: from-yaml\ndefaultTtl: 2m\ncache:\n  maxBytes: 2048\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "from-yaml", cfg.Namespace)
	assert.Equal(t, 2*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, int64(2048), cfg.Cache.MaxBytes)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")))
}
