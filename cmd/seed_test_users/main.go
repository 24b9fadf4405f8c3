package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/types"
)

const testPassword = "testpassword123"

var testUsers = []types.RegisterRequest{
	{Email: "john.doe@example.com", Username: "johndoe", FirstName: "John", LastName: "Doe"},
	{Email: "jane.smith@example.com", Username: "janesmith", FirstName: "Jane", LastName: "Smith"},
	{Email: "bob.wilson@example.com", Username: "bobwilson", FirstName: "Bob", LastName: "Wilson"},
	{Email: "alice.cooper@example.com", Username: "alicecooper", FirstName: "Alice", LastName: "Cooper"},
}

func main() {
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

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		logger.Fatal("failed to initialize media storage", zap.Error(err))
	}
	users := service.NewUserService(db, store)

	ctx := context.Background()
	for _, req := range testUsers {
		req.Password = testPassword

		created, err := users.Register(ctx, &req)
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			logger.Info("user already exists, skipping", zap.String("email", req.Email))
			continue
		}
		if err != nil {
			logger.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
			continue
		}
		logger.Info("created test user", zap.String("email", created.Email), zap.String("id", created.ID.String()))
	}

	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		logger.Fatal("failed to count users", zap.Error(err))
	}
	logger.Info("test users ready", zap.Int64("total_users", total), zap.String("password", testPassword))
}
