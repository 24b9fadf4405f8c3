package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// requiredSecrets lists the settings each environment refuses to default.
var requiredSecrets = map[Environment][]string{
	Development: {},
	Test:        {},
	CI:          {"JWT_SECRET"},
	Production:  {"JWT_SECRET", "DB_PASSWORD"},
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	var errs []string
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg}.Error())
	}

	for _, name := range requiredSecrets[cfg.Env] {
		switch name {
		case "JWT_SECRET":
			if cfg.JWTSecret == "" {
				add(name, "is required")
			}
		case "DB_PASSWORD":
			if cfg.DBDriver == "postgres" && cfg.DBPassword == "" {
				add(name, "is required")
			}
		}
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		add("DB_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DBDriver))
	}

	switch cfg.StorageBackend {
	case "local":
		if cfg.MediaRoot == "" {
			add("MEDIA_ROOT", "is required for local storage")
		}
	case "s3":
		if cfg.S3Bucket == "" {
			add("S3_BUCKET_NAME", "is required for s3 storage")
		}
	default:
		add("STORAGE_BACKEND", fmt.Sprintf("unsupported backend %q", cfg.StorageBackend))
	}

	if cfg.PageSize < 1 {
		add("PAGE_SIZE", "must be positive")
	}
	if cfg.MaxPageSize < cfg.PageSize {
		add("MAX_PAGE_SIZE", "must not be smaller than PAGE_SIZE")
	}
	if cfg.TokenTTL <= 0 {
		add("TOKEN_TTL", "must be positive")
	}
	if cfg.ImageMaxWidth < 0 {
		add("IMAGE_MAX_WIDTH", "must not be negative")
	}
	if cfg.ImageMaxPixels < 1 {
		add("IMAGE_MAX_PIXELS", "must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
