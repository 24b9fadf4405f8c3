package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
)

func main() {
	file := flag.String("file", "data/ingredients.csv", "CSV or JSON file with the ingredient catalogue")
	withTags := flag.Bool("tags", true, "Also create the default tags")
	flag.Parse()

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

	ingredients, err := readIngredients(*file)
	if err != nil {
		logger.Fatal("failed to read ingredients", zap.String("file", *file), zap.Error(err))
	}

	ctx := context.Background()
	catalog := service.NewCatalogService(db)

	added, err := catalog.ImportIngredients(ctx, ingredients)
	if err != nil {
		logger.Fatal("failed to import ingredients", zap.Error(err))
	}
	logger.Info("ingredients loaded",
		zap.Int("read", len(ingredients)),
		zap.Int64("added", added),
	)

	if *withTags {
		created, err := catalog.EnsureTags(ctx, service.DefaultTags)
		if err != nil {
			logger.Fatal("failed to create tags", zap.Error(err))
		}
		logger.Info("tags loaded", zap.Int64("created", created))
	}
}

func readIngredients(path string) ([]models.Ingredient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parse := service.ParseIngredientsCSV
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parse = service.ParseIngredientsJSON
	}
	return parse(f)
}
