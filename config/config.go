package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Env Environment

	// Server configuration
	ServerPort     string
	ServerHost     string
	AllowedOrigins []string

	// Database configuration
	DBDriver    string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBPath      string
	AutoMigrate bool

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Token configuration
	JWTSecret string
	TokenTTL  time.Duration

	// Media configuration
	StorageBackend string
	MediaRoot      string
	MediaURL       string
	S3Bucket       string
	S3BaseURL      string
	AWSRegion      string
	ImageMaxWidth  int
	ImageMaxPixels int

	// API behaviour
	PageSize          int
	MaxPageSize       int
	RecipeCreateLimit int
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// PostgresDSN builds the key/value connection string understood by both
// lib/pq and pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// LoadConfig builds a Config from environment variables, falling back to
// Docker secrets and then to development defaults.
func LoadConfig() (*Config, error) {
	env := GetEnvironment()

	if env == Development || env == Test {
		// A missing .env file is fine; anything else is a broken file.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{Env: env}
	var err error

	cfg.ServerPort = value("SERVER_PORT", "server_port", "8000")
	cfg.ServerHost = value("SERVER_HOST", "server_host", "0.0.0.0")
	cfg.AllowedOrigins = splitList(value("CORS_ALLOWED_ORIGINS", "", "http://localhost:3000,http://localhost"))

	cfg.DBDriver = value("DB_DRIVER", "", "postgres")
	cfg.DBHost = value("DB_HOST", "db_host", "localhost")
	cfg.DBPort = value("DB_PORT", "db_port", "5432")
	cfg.DBUser = value("DB_USER", "db_user", "postgres")
	cfg.DBPassword = value("DB_PASSWORD", "db_password", "")
	cfg.DBName = value("DB_NAME", "db_name", "foodgram")
	cfg.DBSSLMode = value("DB_SSL_MODE", "db_ssl_mode", "disable")
	cfg.DBPath = value("DB_PATH", "", "foodgram.db")
	if cfg.AutoMigrate, err = boolValue("DB_AUTO_MIGRATE", env != Production); err != nil {
		return nil, err
	}

	cfg.RedisHost = value("REDIS_HOST", "redis_host", "")
	cfg.RedisPort = value("REDIS_PORT", "redis_port", "6379")
	cfg.RedisPassword = value("REDIS_PASSWORD", "redis_password", "")
	cfg.RedisURL = value("REDIS_URL", "redis_url", "")
	if cfg.RedisDB, err = intValue("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.JWTSecret = value("JWT_SECRET", "jwt_secret", "")
	if cfg.JWTSecret == "" && env != Production && env != CI {
		cfg.JWTSecret = "foodgram-development-secret"
	}
	if cfg.TokenTTL, err = durationValue("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.StorageBackend = value("STORAGE_BACKEND", "", "local")
	cfg.MediaRoot = value("MEDIA_ROOT", "", "media")
	cfg.MediaURL = value("MEDIA_URL", "", "/media/")
	cfg.S3Bucket = value("S3_BUCKET_NAME", "s3_bucket_name", "")
	cfg.S3BaseURL = value("S3_BASE_URL", "", "")
	cfg.AWSRegion = value("AWS_REGION", "", "us-east-1")
	if cfg.ImageMaxWidth, err = intValue("IMAGE_MAX_WIDTH", 1280); err != nil {
		return nil, err
	}
	if cfg.ImageMaxPixels, err = intValue("IMAGE_MAX_PIXELS", 40_000_000); err != nil {
		return nil, err
	}

	if cfg.PageSize, err = intValue("PAGE_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = intValue("MAX_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.RecipeCreateLimit, err = intValue("RECIPE_CREATE_LIMIT", 30); err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// value resolves a setting from the environment, then from the named Docker
// secret, then from def.
func value(envName, secretName, def string) string {
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v
	}
	if secretName != "" {
		if v := readSecret(secretName); v != "" {
			return v
		}
	}
	return def
}

func intValue(envName string, def int) (int, error) {
	raw := value(envName, "", "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", envName, err)
	}
	return n, nil
}

func boolValue(envName string, def bool) (bool, error) {
	raw := value(envName, "", "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", envName, err)
	}
	return b, nil
}

func durationValue(envName string, def time.Duration) (time.Duration, error) {
	raw := value(envName, "", "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", envName, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
