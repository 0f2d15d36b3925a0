package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLOUDDB_KEY", testKey)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, float64(60), cfg.RateLimit.APIPerMinute)
	assert.False(t, cfg.StrictSchema)
	assert.False(t, cfg.Store.SealAtRest)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLOUDDB_KEY", testKey)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("STORE_DSN", "postgres://localhost/clouddb")
	t.Setenv("STRICT_SCHEMA", "true")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.StrictSchema)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLOUDDB_KEY", testKey)
	t.Setenv("PORT", "eighty")
	t.Setenv("STRICT_SCHEMA", "maybe")
	t.Setenv("TOKEN_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	for _, name := range []string{"PORT", "STRICT_SCHEMA", "TOKEN_TTL"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Port:  0,
		Store: StoreConfig{Driver: "mysql"},
		Auth:  AuthConfig{BcryptCost: 2, TokenTTL: time.Hour},
		RateLimit: RateLimitConfig{
			APIPerMinute:   1,
			LoginPerMinute: 1,
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "STORE_DSN")
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestLoadGeneratesKey(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CLOUDDB_KEY", "")
	// Present but empty, so godotenv leaves it alone and nothing leaks.
	t.Setenv("PORT", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=8181\nCLOUDDB_KEY=short\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cfg.SecretKey), 32)

	content, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "PORT=8181")
	assert.Contains(t, string(content), "CLOUDDB_KEY="+cfg.SecretKey)
	assert.Equal(t, 1, strings.Count(string(content), "CLOUDDB_KEY="))
}
