package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
)

// RecipeFilter is the parsed recipe list query.
type RecipeFilter struct {
	IsFavorited      bool
	IsInShoppingCart bool
	AuthorMe         bool
	Author           *uuid.UUID
	Tags             []string
}

func parseFlag(v *ValidationError, rc RequestContext, name string) bool {
	raw := rc.Query.Get(name)
	if raw == "" {
		return false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.Add(name, "Enter a number.")
		return false
	}
	return n == 1
}

// ParseRecipeFilter reads is_favorited, is_in_shopping_cart, author and tags
// from the request query. tags may repeat and may hold comma-separated slugs.
func ParseRecipeFilter(rc RequestContext) (RecipeFilter, error) {
	v := &ValidationError{}
	f := RecipeFilter{
		IsFavorited:      parseFlag(v, rc, "is_favorited"),
		IsInShoppingCart: parseFlag(v, rc, "is_in_shopping_cart"),
	}

	switch author := rc.Query.Get("author"); author {
	case "":
	case "me":
		f.AuthorMe = true
	default:
		id, err := uuid.Parse(author)
		if err != nil {
			v.Add("author", "Enter a valid UUID.")
		} else {
			f.Author = &id
		}
	}

	seen := make(map[string]bool)
	for _, raw := range rc.Query["tags"] {
		for _, slug := range strings.Split(raw, ",") {
			slug = strings.TrimSpace(slug)
			if slug == "" || seen[slug] {
				continue
			}
			seen[slug] = true
			f.Tags = append(f.Tags, slug)
		}
	}

	if err := v.Err(); err != nil {
		return RecipeFilter{}, err
	}
	return f, nil
}

// checkTagSlugs rejects the first tags slug that names no tag.
func checkTagSlugs(db *gorm.DB, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}

	var known []string
	if err := db.Model(&models.Tag{}).Where("slug IN ?", slugs).Pluck("slug", &known).Error; err != nil {
		return fmt.Errorf("failed to look up tags: %w", err)
	}
	found := make(map[string]bool, len(known))
	for _, slug := range known {
		found[slug] = true
	}
	for _, slug := range slugs {
		if !found[slug] {
			return NewValidationError("tags", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", slug))
		}
	}
	return nil
}

func matchNothing(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

// Scopes turns the filter into gorm scopes over the recipes table. Filters
// that need a user match nothing for anonymous requests.
func (f RecipeFilter) Scopes(rc RequestContext) []func(*gorm.DB) *gorm.DB {
	var scopes []func(*gorm.DB) *gorm.DB

	if f.IsFavorited {
		scopes = append(scopes, userListScope(rc, "favorites"))
	}
	if f.IsInShoppingCart {
		scopes = append(scopes, userListScope(rc, "shopping_carts"))
	}

	switch {
	case f.AuthorMe && !rc.Authenticated():
		scopes = append(scopes, matchNothing)
	case f.AuthorMe:
		userID := rc.UserID()
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("recipes.author_id = ?", userID)
		})
	case f.Author != nil:
		authorID := *f.Author
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("recipes.author_id = ?", authorID)
		})
	}

	if len(f.Tags) > 0 {
		tags := f.Tags
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			// A subquery keeps a recipe matching several tags to one row.
			return db.Where(`recipes.id IN (
				SELECT recipe_tags.recipe_id FROM recipe_tags
				JOIN tags ON tags.id = recipe_tags.tag_id
				WHERE tags.slug IN ?)`, tags)
		})
	}

	return scopes
}

func userListScope(rc RequestContext, table string) func(*gorm.DB) *gorm.DB {
	if !rc.Authenticated() {
		return matchNothing
	}
	userID := rc.UserID()
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("recipes.id IN (SELECT recipe_id FROM "+table+" WHERE user_id = ?)", userID)
	}
}

// IngredientNameScope matches ingredients whose name contains q, ignoring
// case, and orders names starting with q first.
func IngredientNameScope(q string) func(*gorm.DB) *gorm.DB {
	q = strings.ToLower(strings.TrimSpace(q))
	return func(db *gorm.DB) *gorm.DB {
		if q == "" {
			return db.Order("name")
		}
		pattern := escapeLike(q)
		return db.
			Where(`search_name LIKE ? ESCAPE '\'`, "%"+pattern+"%").
			Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:                `CASE WHEN search_name LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, name`,
				Vars:               []interface{}{pattern + "%"},
				WithoutParentheses: true,
			}})
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
