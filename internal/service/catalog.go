package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// DefaultTags are created by the catalogue loader when missing.
var DefaultTags = []models.Tag{
	{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
	{Name: "Lunch", Color: "#49B64E", Slug: "lunch"},
	{Name: "Dinner", Color: "#8775D2", Slug: "dinner"},
}

// CatalogService serves the read-only tag and ingredient catalogue.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) ListTags(ctx context.Context) ([]types.TagResponse, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	results := make([]types.TagResponse, 0, len(tags))
	for i := range tags {
		results = append(results, tagResponse(&tags[i]))
	}
	return results, nil
}

func (s *CatalogService) GetTag(ctx context.Context, id uint) (*types.TagResponse, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).First(&tag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tag: %w", err)
	}
	resp := tagResponse(&tag)
	return &resp, nil
}

// ListIngredients returns every ingredient, or those whose name contains
// name when it is set.
func (s *CatalogService) ListIngredients(ctx context.Context, name string) ([]types.IngredientResponse, error) {
	var ingredients []models.Ingredient
	if err := s.db.WithContext(ctx).Scopes(IngredientNameScope(name)).Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}

	results := make([]types.IngredientResponse, 0, len(ingredients))
	for i := range ingredients {
		results = append(results, ingredientResponse(&ingredients[i]))
	}
	return results, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id uint) (*types.IngredientResponse, error) {
	var ingredient models.Ingredient
	err := s.db.WithContext(ctx).First(&ingredient, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredient: %w", err)
	}
	resp := ingredientResponse(&ingredient)
	return &resp, nil
}

// ParseIngredientsCSV reads "name,measurement_unit" rows. A header row is
// skipped when present.
func ParseIngredientsCSV(r io.Reader) ([]models.Ingredient, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var ingredients []models.Ingredient
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		name, unit := strings.TrimSpace(record[0]), strings.TrimSpace(record[1])
		if line == 1 && name == "name" && unit == "measurement_unit" {
			continue
		}
		if name == "" || unit == "" {
			return nil, fmt.Errorf("line %d: name and measurement unit are required", line)
		}
		ingredients = append(ingredients, models.Ingredient{Name: name, MeasurementUnit: unit})
	}
	return ingredients, nil
}

// ParseIngredientsJSON reads [{"name": ..., "measurement_unit": ...}].
func ParseIngredientsJSON(r io.Reader) ([]models.Ingredient, error) {
	var rows []types.IngredientResponse
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	ingredients := make([]models.Ingredient, 0, len(rows))
	for i, row := range rows {
		name, unit := strings.TrimSpace(row.Name), strings.TrimSpace(row.MeasurementUnit)
		if name == "" || unit == "" {
			return nil, fmt.Errorf("item %d: name and measurement unit are required", i)
		}
		ingredients = append(ingredients, models.Ingredient{Name: name, MeasurementUnit: unit})
	}
	return ingredients, nil
}

// ImportIngredients inserts ingredients, skipping (name, unit) pairs that
// already exist. It returns the number of new rows.
func (s *CatalogService) ImportIngredients(ctx context.Context, ingredients []models.Ingredient) (int64, error) {
	if len(ingredients) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&ingredients, 500)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to import ingredients: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EnsureTags creates the tags that do not exist yet.
func (s *CatalogService) EnsureTags(ctx context.Context, tags []models.Tag) (int64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	rows := make([]models.Tag, len(tags))
	copy(rows, tags)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create tags: %w", result.Error)
	}
	return result.RowsAffected, nil
}
