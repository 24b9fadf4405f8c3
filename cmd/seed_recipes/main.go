package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/types"
)

type seedIngredient struct {
	name   string
	unit   string
	amount int
}

type seedRecipe struct {
	name        string
	text        string
	cookingTime int
	tags        []string
	ingredients []seedIngredient
	color       color.RGBA
}

// Ingredient names match data/ingredients.csv.
var recipes = []seedRecipe{
	{
		name:        "Омлет",
		text:        "Взбейте яйца с молоком и солью, вылейте на разогретую сковороду с маслом и готовьте под крышкой.",
		cookingTime: 10,
		tags:        []string{"breakfast"},
		ingredients: []seedIngredient{{"яйца куриные", "шт.", 3}, {"молоко", "мл", 50}, {"масло сливочное", "г", 10}, {"соль", "по вкусу", 1}},
		color:       color.RGBA{R: 0xF4, G: 0xD0, B: 0x3F, A: 0xFF},
	},
	{
		name:        "Сырники",
		text:        "Смешайте творог, яйцо, сахар и муку. Сформируйте сырники и обжарьте с двух сторон.",
		cookingTime: 25,
		tags:        []string{"breakfast"},
		ingredients: []seedIngredient{{"творог", "г", 400}, {"яйца куриные", "шт.", 1}, {"сахар", "г", 40}, {"мука пшеничная", "г", 60}},
		color:       color.RGBA{R: 0xE2, G: 0x6C, B: 0x2D, A: 0xFF},
	},
	{
		name:        "Гречка с грибами",
		text:        "Отварите гречку. Обжарьте лук с шампиньонами и перемешайте с гречкой.",
		cookingTime: 35,
		tags:        []string{"lunch", "dinner"},
		ingredients: []seedIngredient{{"гречка", "г", 200}, {"грибы шампиньоны", "г", 250}, {"лук репчатый", "г", 100}, {"соль", "по вкусу", 1}},
		color:       color.RGBA{R: 0x87, G: 0x75, B: 0xD2, A: 0xFF},
	},
}

func main() {
	authorEmail := flag.String("author", "john.doe@example.com", "Email of the user the recipes are published by")
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

	ctx := context.Background()
	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize media storage", zap.Error(err))
	}

	var author models.User
	if err := db.Where("email = ?", *authorEmail).First(&author).Error; err != nil {
		logger.Fatal("author not found, run seed_test_users first", zap.String("email", *authorEmail), zap.Error(err))
	}

	catalog := service.NewCatalogService(db)
	if _, err := catalog.EnsureTags(ctx, service.DefaultTags); err != nil {
		logger.Fatal("failed to create tags", zap.Error(err))
	}

	recipeService := service.NewRecipeService(db, store, service.ImageLimits{MaxWidth: cfg.ImageMaxWidth, MaxPixels: cfg.ImageMaxPixels})
	rc := service.RequestContext{User: &author}

	for _, seed := range recipes {
		var existing int64
		if err := db.Model(&models.Recipe{}).Where("author_id = ? AND name = ?", author.ID, seed.name).Count(&existing).Error; err != nil {
			logger.Fatal("failed to check recipe", zap.Error(err))
		}
		if existing > 0 {
			logger.Info("recipe already exists, skipping", zap.String("name", seed.name))
			continue
		}

		req, err := buildRequest(db, seed)
		if err != nil {
			logger.Warn("skipping recipe", zap.String("name", seed.name), zap.Error(err))
			continue
		}

		recipe, err := recipeService.Create(ctx, rc, req)
		if err != nil {
			logger.Error("failed to create recipe", zap.String("name", seed.name), zap.Error(err))
			continue
		}
		logger.Info("created recipe", zap.String("name", recipe.Name), zap.String("id", recipe.ID.String()))
	}
}

func buildRequest(db *gorm.DB, seed seedRecipe) (*types.RecipeWriteRequest, error) {
	req := &types.RecipeWriteRequest{
		Name:        seed.name,
		Text:        seed.text,
		CookingTime: &seed.cookingTime,
	}

	for _, item := range seed.ingredients {
		var ingredient models.Ingredient
		err := db.Where("name = ? AND measurement_unit = ?", item.name, item.unit).First(&ingredient).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ingredient %q (%s) is not loaded, run load_ingredients first", item.name, item.unit)
		}
		if err != nil {
			return nil, err
		}
		amount := item.amount
		req.Ingredients = append(req.Ingredients, types.RecipeIngredientInput{ID: ingredient.ID, Amount: &amount})
	}

	for _, slug := range seed.tags {
		var tag models.Tag
		if err := db.Where("slug = ?", slug).First(&tag).Error; err != nil {
			return nil, fmt.Errorf("tag %q: %w", slug, err)
		}
		req.Tags = append(req.Tags, tag.ID)
	}

	dataURL, err := placeholderImage(seed.color)
	if err != nil {
		return nil, err
	}
	req.Image = dataURL
	return req, nil
}

// placeholderImage renders a solid square as a PNG data URL.
func placeholderImage(c color.RGBA) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
