package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("CI", "")
	for _, name := range []string{
		"ENV", "SERVER_PORT", "DB_DRIVER", "DB_HOST", "DB_PASSWORD", "JWT_SECRET",
		"STORAGE_BACKEND", "S3_BUCKET_NAME", "PAGE_SIZE", "MAX_PAGE_SIZE", "TOKEN_TTL",
		"REDIS_URL", "DB_AUTO_MIGRATE", "IMAGE_MAX_WIDTH", "IMAGE_MAX_PIXELS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig(t *testing.T) {
	isolate(t)
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PAGE_SIZE", "6")
	t.Setenv("TOKEN_TTL", "2h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, Development, cfg.Env)
	assert.Equal(t, "db", cfg.DBHost)
	assert.Equal(t, "postgres", cfg.DBPassword)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 6, cfg.PageSize)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadConfigWithDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "foodgram", cfg.DBName)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, 1280, cfg.ImageMaxWidth)
	assert.Equal(t, 40_000_000, cfg.ImageMaxPixels)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadConfigReadsDockerSecrets(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("SECRETS_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("from-secret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("jwt-from-secret"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-secret", cfg.DBPassword)
	assert.Equal(t, "jwt-from-secret", cfg.JWTSecret)
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	isolate(t)
	t.Setenv("ENV", "production")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestLoadConfigRejectsMalformedNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("PAGE_SIZE", "five")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateConfigS3RequiresBucket(t *testing.T) {
	cfg := &Config{
		Env:            Development,
		DBDriver:       "sqlite",
		StorageBackend: "s3",
		PageSize:       5,
		MaxPageSize:    100,
		TokenTTL:       time.Hour,
	}
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET_NAME")

	cfg.S3Bucket = "foodgram-media"
	assert.NoError(t, ValidateConfig(cfg))
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBHost: "h", DBPort: "1", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable", cfg.PostgresDSN())
}
