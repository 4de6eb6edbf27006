package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	assert.Equal(t, 0.05, p.Alpha)
	assert.Equal(t, 4, p.Divisor)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("QRMARK_ALPHA", "")
	t.Setenv("QRMARK_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "qrmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
alpha: 0.08
block_rows: 10
thresholds:
  strong: 0.95
  weak: 0.6
reference:
  backend: minio
  key: batch-7
  minio:
    endpoint: localhost:9000
    bucket: refs
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.08, cfg.Alpha)
	assert.Equal(t, 10, cfg.BlockRows)
	assert.Equal(t, 4, cfg.BlockDivisor)
	assert.Equal(t, 0.95, cfg.Thresholds.Strong)
	assert.Equal(t, "minio", cfg.Reference.Backend)
	assert.Equal(t, "refs", cfg.Reference.Minio.Bucket)
	assert.Equal(t, "batch-7", cfg.Reference.Key)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 256, cfg.QR.Size)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alpha: 0.02\n"), 0o644))

	t.Setenv(EnvConfig, path)
	t.Setenv("QRMARK_ALPHA", "0.07")
	t.Setenv("QRMARK_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.07, cfg.Alpha)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("QRMARK_LOG_LEVEL", "")

	t.Setenv("QRMARK_ALPHA", "strong")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("QRMARK_ALPHA", "")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alpha: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero alpha", func(c *Config) { c.Alpha = 0 }},
		{"negative alpha", func(c *Config) { c.Alpha = -1 }},
		{"divisor", func(c *Config) { c.BlockDivisor = 0 }},
		{"block override", func(c *Config) { c.BlockRows = -2 }},
		{"thresholds", func(c *Config) { c.Thresholds.Weak = 0.95 }},
		{"binarize", func(c *Config) { c.BinarizeThreshold = 300 }},
		{"key", func(c *Config) { c.Reference.Key = "../x" }},
		{"qr size", func(c *Config) { c.QR.Size = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
