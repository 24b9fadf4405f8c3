package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pageza/foodgram/backend/internal/models"
)

// ShoppingListItem is the summed amount of one ingredient across the cart.
type ShoppingListItem struct {
	Name            string
	MeasurementUnit string
	Total           int64
}

// ShoppingList aggregates the ingredients of every recipe in the
// requester's cart, grouped by name and unit, ordered by name.
func (s *RecipeService) ShoppingList(ctx context.Context, rc RequestContext) ([]ShoppingListItem, error) {
	if !rc.Authenticated() {
		return nil, ErrUnauthorized
	}

	var items []ShoppingListItem
	err := s.db.WithContext(ctx).
		Model(&models.ShoppingCart{}).
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(recipe_ingredients.amount) AS total").
		Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = shopping_carts.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("shopping_carts.user_id = ?", rc.UserID()).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name, ingredients.measurement_unit").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build shopping list: %w", err)
	}
	return items, nil
}

// RenderShoppingList formats items as the downloadable text file.
func RenderShoppingList(username string, items []ShoppingListItem) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s, here is your shopping list:\n", username)
	for _, item := range items {
		fmt.Fprintf(&buf, "%s (%s) - %d\n", item.Name, item.MeasurementUnit, item.Total)
	}
	buf.WriteString("foodgram")
	return buf.Bytes()
}
