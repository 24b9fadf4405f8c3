package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	maxRecipeNameLength = 200
	recipeImageDir      = "recipes/images"
)

// ListKind selects the per-user recipe list a toggle works on.
type ListKind int

const (
	Favorites ListKind = iota
	ShoppingCart
)

func (k ListKind) String() string {
	if k == ShoppingCart {
		return "shopping_cart"
	}
	return "favorite"
}

func (k ListKind) row(userID, recipeID uuid.UUID) interface{} {
	if k == ShoppingCart {
		return &models.ShoppingCart{UserID: userID, RecipeID: recipeID}
	}
	return &models.Favorite{UserID: userID, RecipeID: recipeID}
}

func (k ListKind) model() interface{} {
	if k == ShoppingCart {
		return &models.ShoppingCart{}
	}
	return &models.Favorite{}
}

// RecipeService handles recipe operations
type RecipeService struct {
	db          *gorm.DB
	store       storage.Store
	imageLimits ImageLimits
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB, store storage.Store, imageLimits ImageLimits) *RecipeService {
	return &RecipeService{
		db:          db,
		store:       store,
		imageLimits: imageLimits,
	}
}

func withRecipeDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id") }).
		Preload("Ingredients.Ingredient")
}

// validateWrite checks a create or update body against the catalogue.
func (s *RecipeService) validateWrite(db *gorm.DB, req *types.RecipeWriteRequest, requireImage bool) error {
	v := &ValidationError{}

	if len(req.Ingredients) == 0 {
		v.Add("ingredients", "At least one ingredient is required.")
	}
	seenIngredients := make(map[uint]bool, len(req.Ingredients))
	ingredientIDs := make([]uint, 0, len(req.Ingredients))
	for _, item := range req.Ingredients {
		if item.ID == 0 {
			v.Add("ingredients", "Each ingredient needs an id.")
			continue
		}
		if item.Amount == nil {
			v.Add("ingredients", "Each ingredient needs an amount.")
		} else if *item.Amount < 1 {
			v.Add("ingredients", "Ingredient amount must be at least 1.")
		}
		if seenIngredients[item.ID] {
			v.Addf("ingredients", "Ingredient %d is listed more than once.", item.ID)
			continue
		}
		seenIngredients[item.ID] = true
		ingredientIDs = append(ingredientIDs, item.ID)
	}

	if len(req.Tags) == 0 {
		v.Add("tags", "At least one tag is required.")
	}
	seenTags := make(map[uint]bool, len(req.Tags))
	tagIDs := make([]uint, 0, len(req.Tags))
	for _, id := range req.Tags {
		if seenTags[id] {
			v.Addf("tags", "Tag %d is listed more than once.", id)
			continue
		}
		seenTags[id] = true
		tagIDs = append(tagIDs, id)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		v.Add("name", "This field may not be blank.")
	} else if utf8.RuneCountInString(name) > maxRecipeNameLength {
		v.Addf("name", "Ensure this field has no more than %d characters.", maxRecipeNameLength)
	}
	if strings.TrimSpace(req.Text) == "" {
		v.Add("text", "This field may not be blank.")
	}
	if req.CookingTime == nil {
		v.Add("cooking_time", "This field is required.")
	} else if *req.CookingTime < 1 {
		v.Add("cooking_time", "Ensure this value is greater than or equal to 1.")
	}
	if requireImage && !req.HasImage() {
		v.Add("image", "This field is required.")
	}

	if len(ingredientIDs) > 0 {
		var found []uint
		if err := db.Model(&models.Ingredient{}).Where("id IN ?", ingredientIDs).Pluck("id", &found).Error; err != nil {
			return fmt.Errorf("failed to check ingredients: %w", err)
		}
		for _, id := range missingIDs(ingredientIDs, found) {
			v.Addf("ingredients", "Invalid pk \"%d\" - object does not exist.", id)
		}
	}
	if len(tagIDs) > 0 {
		var found []uint
		if err := db.Model(&models.Tag{}).Where("id IN ?", tagIDs).Pluck("id", &found).Error; err != nil {
			return fmt.Errorf("failed to check tags: %w", err)
		}
		for _, id := range missingIDs(tagIDs, found) {
			v.Addf("tags", "Invalid pk \"%d\" - object does not exist.", id)
		}
	}

	return v.Err()
}

func missingIDs(want, found []uint) []uint {
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []uint
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// storeImage validates, scales and saves the request image. It returns the
// storage key.
func (s *RecipeService) storeImage(ctx context.Context, req *types.RecipeWriteRequest) (string, error) {
	var img *Image
	var err error
	if req.ImageFile != nil && len(req.ImageFile.Data) > 0 {
		img = FromUpload(req.ImageFile)
	} else {
		img, err = DecodeDataURL(req.Image)
		if err != nil {
			return "", err
		}
	}

	img, err = ProcessImage(img, s.imageLimits)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s.%s", recipeImageDir, uuid.NewString(), img.Ext)
	if err := s.store.Save(ctx, key, img.ContentType, img.Data); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return key, nil
}

func (s *RecipeService) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete recipe image", zap.String("key", key), zap.Error(err))
	}
}

// replaceLinks writes the ingredient rows and tag links of recipeID.
func replaceLinks(tx *gorm.DB, recipeID uuid.UUID, req *types.RecipeWriteRequest) error {
	rows := make([]models.RecipeIngredient, 0, len(req.Ingredients))
	for _, item := range req.Ingredients {
		rows = append(rows, models.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: item.ID,
			Amount:       *item.Amount,
		})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save recipe ingredients: %w", err)
	}

	links := make([]map[string]interface{}, 0, len(req.Tags))
	for _, id := range req.Tags {
		links = append(links, map[string]interface{}{"recipe_id": recipeID, "tag_id": id})
	}
	if err := tx.Table("recipe_tags").Create(links).Error; err != nil {
		return fmt.Errorf("failed to save recipe tags: %w", err)
	}
	return nil
}

func (s *RecipeService) find(db *gorm.DB, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	err := db.First(&recipe, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}
	return &recipe, nil
}

// Create stores a new recipe authored by the requester.
func (s *RecipeService) Create(ctx context.Context, rc RequestContext, req *types.RecipeWriteRequest) (*types.RecipeResponse, error) {
	if !rc.Authenticated() {
		return nil, ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	if err := s.validateWrite(db, req, true); err != nil {
		return nil, err
	}

	imageKey, err := s.storeImage(ctx, req)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    rc.UserID(),
		Name:        strings.TrimSpace(req.Name),
		Image:       imageKey,
		Text:        req.Text,
		CookingTime: *req.CookingTime,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		return replaceLinks(tx, recipe.ID, req)
	})
	if err != nil {
		s.discardImage(ctx, imageKey)
		return nil, err
	}

	logger.Info("recipe created", zap.String("recipe_id", recipe.ID.String()), zap.String("author_id", recipe.AuthorID.String()))
	return s.Get(ctx, rc, recipe.ID)
}

// Update replaces the fields, ingredients and tags of recipe id. Only the
// author may update a recipe. The image is kept unless a new one is sent.
func (s *RecipeService) Update(ctx context.Context, rc RequestContext, id uuid.UUID, req *types.RecipeWriteRequest) (*types.RecipeResponse, error) {
	if !rc.Authenticated() {
		return nil, ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	recipe, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != rc.UserID() {
		return nil, ErrForbidden
	}
	if err := s.validateWrite(db, req, false); err != nil {
		return nil, err
	}

	var newImage string
	if req.HasImage() {
		if newImage, err = s.storeImage(ctx, req); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{
		"name":         strings.TrimSpace(req.Name),
		"text":         req.Text,
		"cooking_time": *req.CookingTime,
	}
	if newImage != "" {
		updates["image"] = newImage
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Recipe{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("failed to clear recipe ingredients: %w", err)
		}
		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to clear recipe tags: %w", err)
		}
		return replaceLinks(tx, id, req)
	})
	if err != nil {
		s.discardImage(ctx, newImage)
		return nil, err
	}
	if newImage != "" {
		s.discardImage(ctx, recipe.Image)
	}

	return s.Get(ctx, rc, id)
}

// Delete removes recipe id and every row that references it. Only the author
// may delete a recipe.
func (s *RecipeService) Delete(ctx context.Context, rc RequestContext, id uuid.UUID) error {
	if !rc.Authenticated() {
		return ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	recipe, err := s.find(db, id)
	if err != nil {
		return err
	}
	if recipe.AuthorID != rc.UserID() {
		return ErrForbidden
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.RecipeIngredient{}, &models.Favorite{}, &models.ShoppingCart{}} {
			if err := tx.Where("recipe_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Recipe{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	s.discardImage(ctx, recipe.Image)
	return nil
}

// flags resolves the requester-dependent booleans for recipes with one query
// per join table.
func (s *RecipeService) flags(db *gorm.DB, rc RequestContext, recipes []models.Recipe) (map[uuid.UUID]recipeFlags, error) {
	result := make(map[uuid.UUID]recipeFlags, len(recipes))
	if !rc.Authenticated() || len(recipes) == 0 {
		return result, nil
	}

	recipeIDs := make([]uuid.UUID, 0, len(recipes))
	authorIDs := make([]uuid.UUID, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	var favorited, inCart []uuid.UUID
	if err := db.Model(&models.Favorite{}).
		Where("user_id = ? AND recipe_id IN ?", rc.UserID(), recipeIDs).
		Pluck("recipe_id", &favorited).Error; err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	if err := db.Model(&models.ShoppingCart{}).
		Where("user_id = ? AND recipe_id IN ?", rc.UserID(), recipeIDs).
		Pluck("recipe_id", &inCart).Error; err != nil {
		return nil, fmt.Errorf("failed to load shopping cart: %w", err)
	}
	followed, err := followedAmong(db, rc, authorIDs)
	if err != nil {
		return nil, err
	}

	isFavorited := make(map[uuid.UUID]bool, len(favorited))
	for _, id := range favorited {
		isFavorited[id] = true
	}
	isInCart := make(map[uuid.UUID]bool, len(inCart))
	for _, id := range inCart {
		isInCart[id] = true
	}
	for _, r := range recipes {
		result[r.ID] = recipeFlags{
			favorited:  isFavorited[r.ID],
			inCart:     isInCart[r.ID],
			subscribed: followed[r.AuthorID],
		}
	}
	return result, nil
}

// Get returns recipe id as seen by the requester.
func (s *RecipeService) Get(ctx context.Context, rc RequestContext, id uuid.UUID) (*types.RecipeResponse, error) {
	db := s.db.WithContext(ctx)

	var recipe models.Recipe
	err := db.Scopes(withRecipeDetails).First(&recipe, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}

	flags, err := s.flags(db, rc, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	resp := recipeResponse(s.store, &recipe, flags[recipe.ID])
	return &resp, nil
}

// List returns one page of recipes, newest first, filtered by the request
// query.
func (s *RecipeService) List(ctx context.Context, rc RequestContext, page PageRequest) ([]types.RecipeResponse, int64, error) {
	filter, err := ParseRecipeFilter(rc)
	if err != nil {
		return nil, 0, err
	}

	db := s.db.WithContext(ctx)
	if err := checkTagSlugs(db, filter.Tags); err != nil {
		return nil, 0, err
	}
	query := db.Model(&models.Recipe{}).Scopes(filter.Scopes(rc)...)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, 0, err
	}

	var recipes []models.Recipe
	if err := db.Scopes(filter.Scopes(rc)...).
		Scopes(withRecipeDetails).
		Order("recipes.pub_date DESC, recipes.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&recipes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	flags, err := s.flags(db, rc, recipes)
	if err != nil {
		return nil, 0, err
	}

	results := make([]types.RecipeResponse, 0, len(recipes))
	for i := range recipes {
		results = append(results, recipeResponse(s.store, &recipes[i], flags[recipes[i].ID]))
	}
	return results, count, nil
}

// AddToList puts recipe id on the requester's favorites or shopping cart.
func (s *RecipeService) AddToList(ctx context.Context, rc RequestContext, kind ListKind, id uuid.UUID) (*types.RecipeShortResponse, error) {
	if !rc.Authenticated() {
		return nil, ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	recipe, err := s.find(db, id)
	if err != nil {
		return nil, err
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(kind.row(rc.UserID(), id))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to add recipe to %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyInList
	}

	resp := shortRecipe(s.store, recipe)
	return &resp, nil
}

// RemoveFromList takes recipe id off the requester's favorites or shopping cart.
func (s *RecipeService) RemoveFromList(ctx context.Context, rc RequestContext, kind ListKind, id uuid.UUID) error {
	if !rc.Authenticated() {
		return ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	if _, err := s.find(db, id); err != nil {
		return err
	}

	result := db.Where("user_id = ? AND recipe_id = ?", rc.UserID(), id).Delete(kind.model())
	if result.Error != nil {
		return fmt.Errorf("failed to remove recipe from %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotInList
	}
	return nil
}
