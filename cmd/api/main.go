package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Env.String()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	// Redis is optional: without it tokens are revoked in memory and recipe
	// creation is not rate limited.
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", zap.Error(err))
		redisClient = nil
	}

	var tokens service.TokenStore = service.NewMemoryTokenStore()
	var recipeLimiter *middleware.RateLimiter
	if redisClient != nil {
		defer redisClient.Close()
		tokens = service.NewRedisTokenStore(redisClient)
		recipeLimiter = middleware.NewRecipeCreationRateLimiter(redisClient, cfg.RecipeCreateLimit)
	}

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to initialize media storage", zap.Error(err))
	}

	// Initialize services
	deps := api.Dependencies{
		DB:            db,
		Auth:          service.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL, tokens),
		Users:         service.NewUserService(db, store),
		Recipes:       service.NewRecipeService(db, store, service.ImageLimits{MaxWidth: cfg.ImageMaxWidth, MaxPixels: cfg.ImageMaxPixels}),
		Catalog:       service.NewCatalogService(db),
		RecipeLimiter: recipeLimiter,
		Pagination:    api.Pagination{DefaultSize: cfg.PageSize, MaxSize: cfg.MaxPageSize},
	}

	srv := server.New(cfg, deps)
	if err := srv.Start(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
