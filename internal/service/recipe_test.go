package service_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

type recipeFixture struct {
	db     *gorm.DB
	svc    *service.RecipeService
	root   string
	author *models.User
	other  *models.User
	salt   *models.Ingredient
	flour  *models.Ingredient
	lunch  *models.Tag
	dinner *models.Tag
}

func setupRecipeTest(t *testing.T) *recipeFixture {
	db := testhelpers.SetupSQLite(t)
	root := t.TempDir()
	return &recipeFixture{
		db:     db,
		svc:    service.NewRecipeService(db, storage.NewLocalStore(root, "/media/"), service.ImageLimits{MaxWidth: 64}),
		root:   root,
		author: testhelpers.CreateUser(t, db, "author"),
		other:  testhelpers.CreateUser(t, db, "other"),
		salt:   testhelpers.CreateIngredient(t, db, "Salt", "g"),
		flour:  testhelpers.CreateIngredient(t, db, "Flour", "g"),
		lunch:  testhelpers.CreateTag(t, db, "Lunch", "lunch", "#49B64E"),
		dinner: testhelpers.CreateTag(t, db, "Dinner", "dinner", "#8775D2"),
	}
}

func intPtr(v int) *int { return &v }

func as(user *models.User) service.RequestContext {
	return service.RequestContext{User: user, Query: url.Values{}}
}

func anonymous(query url.Values) service.RequestContext {
	return service.RequestContext{Query: query}
}

func (f *recipeFixture) writeRequest(t *testing.T) *types.RecipeWriteRequest {
	return &types.RecipeWriteRequest{
		Ingredients: []types.RecipeIngredientInput{
			{ID: f.salt.ID, Amount: intPtr(5)},
			{ID: f.flour.ID, Amount: intPtr(200)},
		},
		Tags:        []uint{f.lunch.ID},
		Image:       testhelpers.PNGDataURL(t, 8, 8),
		Name:        "Bread",
		Text:        "Knead and bake.",
		CookingTime: intPtr(60),
	}
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var v *service.ValidationError
	require.ErrorAs(t, err, &v)
	return v.Fields
}

func TestCreateRecipe(t *testing.T) {
	f := setupRecipeTest(t)

	resp, err := f.svc.Create(context.Background(), as(f.author), f.writeRequest(t))
	require.NoError(t, err)

	assert.Equal(t, "Bread", resp.Name)
	assert.Equal(t, 60, resp.CookingTime)
	assert.Equal(t, f.author.ID, resp.Author.ID)
	assert.False(t, resp.IsFavorited)
	require.Len(t, resp.Tags, 1)
	assert.Equal(t, "lunch", resp.Tags[0].Slug)
	require.Len(t, resp.Ingredients, 2)
	assert.Equal(t, "Salt", resp.Ingredients[0].Name)
	assert.Equal(t, 5, resp.Ingredients[0].Amount)

	assert.True(t, strings.HasPrefix(resp.Image, "/media/recipes/images/"))
	assert.True(t, strings.HasSuffix(resp.Image, ".png"))
	_, err = os.Stat(filepath.Join(f.root, strings.TrimPrefix(resp.Image, "/media/")))
	assert.NoError(t, err)
}

func TestCreateRecipeValidation(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(req *types.RecipeWriteRequest)
		field  string
	}{
		{"duplicate ingredient", func(req *types.RecipeWriteRequest) {
			req.Ingredients = append(req.Ingredients, types.RecipeIngredientInput{ID: f.salt.ID, Amount: intPtr(1)})
		}, "ingredients"},
		{"zero amount", func(req *types.RecipeWriteRequest) { req.Ingredients[0].Amount = intPtr(0) }, "ingredients"},
		{"missing amount", func(req *types.RecipeWriteRequest) { req.Ingredients[0].Amount = nil }, "ingredients"},
		{"unknown ingredient", func(req *types.RecipeWriteRequest) { req.Ingredients[0].ID = 9999 }, "ingredients"},
		{"no ingredients", func(req *types.RecipeWriteRequest) { req.Ingredients = nil }, "ingredients"},
		{"no tags", func(req *types.RecipeWriteRequest) { req.Tags = nil }, "tags"},
		{"duplicate tag", func(req *types.RecipeWriteRequest) { req.Tags = []uint{f.lunch.ID, f.lunch.ID} }, "tags"},
		{"unknown tag", func(req *types.RecipeWriteRequest) { req.Tags = []uint{9999} }, "tags"},
		{"zero cooking time", func(req *types.RecipeWriteRequest) { req.CookingTime = intPtr(0) }, "cooking_time"},
		{"blank name", func(req *types.RecipeWriteRequest) { req.Name = "  " }, "name"},
		{"long name", func(req *types.RecipeWriteRequest) { req.Name = strings.Repeat("a", 201) }, "name"},
		{"blank text", func(req *types.RecipeWriteRequest) { req.Text = "" }, "text"},
		{"missing image", func(req *types.RecipeWriteRequest) { req.Image = "" }, "image"},
		{"broken image", func(req *types.RecipeWriteRequest) { req.Image = "data:image/png;base64,bm90IGFuIGltYWdl" }, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.writeRequest(t)
			tt.mutate(req)

			_, err := f.svc.Create(ctx, as(f.author), req)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Recipe{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRecipeRequiresUser(t *testing.T) {
	f := setupRecipeTest(t)
	_, err := f.svc.Create(context.Background(), anonymous(nil), f.writeRequest(t))
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestUpdateRecipeReplacesLinks(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, as(f.author), f.writeRequest(t))
	require.NoError(t, err)

	req := f.writeRequest(t)
	req.Image = ""
	req.Name = "Flatbread"
	req.Ingredients = []types.RecipeIngredientInput{{ID: f.flour.ID, Amount: intPtr(150)}}
	req.Tags = []uint{f.dinner.ID}

	updated, err := f.svc.Update(ctx, as(f.author), created.ID, req)
	require.NoError(t, err)

	assert.Equal(t, "Flatbread", updated.Name)
	assert.Equal(t, created.Image, updated.Image)
	require.Len(t, updated.Ingredients, 1)
	assert.Equal(t, "Flour", updated.Ingredients[0].Name)
	assert.Equal(t, 150, updated.Ingredients[0].Amount)
	require.Len(t, updated.Tags, 1)
	assert.Equal(t, "dinner", updated.Tags[0].Slug)

	var rows int64
	require.NoError(t, f.db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestUpdateRecipeReplacesImage(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, as(f.author), f.writeRequest(t))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, as(f.author), created.ID, f.writeRequest(t))
	require.NoError(t, err)
	assert.NotEqual(t, created.Image, updated.Image)

	_, err = os.Stat(filepath.Join(f.root, strings.TrimPrefix(created.Image, "/media/")))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateAndDeleteRequireAuthor(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, as(f.author), f.writeRequest(t))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, as(f.other), created.ID, f.writeRequest(t))
	assert.ErrorIs(t, err, service.ErrForbidden)

	assert.ErrorIs(t, f.svc.Delete(ctx, as(f.other), created.ID), service.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, as(f.author), uuid.New()), service.ErrNotFound)
}

func TestDeleteRecipeRemovesJoinRows(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, as(f.author), f.writeRequest(t))
	require.NoError(t, err)
	_, err = f.svc.AddToList(ctx, as(f.other), service.Favorites, created.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToList(ctx, as(f.other), service.ShoppingCart, created.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, as(f.author), created.ID))

	for _, model := range []interface{}{&models.Recipe{}, &models.RecipeIngredient{}, &models.Favorite{}, &models.ShoppingCart{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
	var links int64
	require.NoError(t, f.db.Table("recipe_tags").Count(&links).Error)
	assert.Zero(t, links)

	_, err = f.svc.Get(ctx, as(f.author), created.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestFavoriteToggle(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	recipe := testhelpers.CreateRecipe(t, f.db, f.author, "Pie")

	short, err := f.svc.AddToList(ctx, as(f.other), service.Favorites, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, recipe.ID, short.ID)
	assert.Equal(t, "Pie", short.Name)
	assert.Equal(t, "/media/recipes/images/Pie.png", short.Image)

	_, err = f.svc.AddToList(ctx, as(f.other), service.Favorites, recipe.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyInList)

	var count int64
	require.NoError(t, f.db.Model(&models.Favorite{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, f.svc.RemoveFromList(ctx, as(f.other), service.Favorites, recipe.ID))
	assert.ErrorIs(t, f.svc.RemoveFromList(ctx, as(f.other), service.Favorites, recipe.ID), service.ErrNotInList)

	_, err = f.svc.AddToList(ctx, as(f.other), service.ShoppingCart, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetRecipeFlags(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	recipe := testhelpers.CreateRecipe(t, f.db, f.author, "Pie")

	_, err := f.svc.AddToList(ctx, as(f.other), service.Favorites, recipe.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.Follow{UserID: f.other.ID, FollowingID: f.author.ID}).Error)

	seen, err := f.svc.Get(ctx, as(f.other), recipe.ID)
	require.NoError(t, err)
	assert.True(t, seen.IsFavorited)
	assert.False(t, seen.IsInShoppingCart)
	assert.True(t, seen.Author.IsSubscribed)

	anon, err := f.svc.Get(ctx, anonymous(nil), recipe.ID)
	require.NoError(t, err)
	assert.False(t, anon.IsFavorited)
	assert.False(t, anon.IsInShoppingCart)
	assert.False(t, anon.Author.IsSubscribed)
}

func TestListRecipesFilters(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	mk := func(author *models.User, name string, offset time.Duration, tags ...*models.Tag) *models.Recipe {
		r := &models.Recipe{AuthorID: author.ID, Name: name, Image: "recipes/images/x.png", Text: "t", CookingTime: 5, PubDate: base.Add(offset)}
		require.NoError(t, f.db.Create(r).Error)
		testhelpers.AddTags(t, f.db, r, tags...)
		return r
	}
	soup := mk(f.author, "Soup", time.Hour, f.lunch, f.dinner)
	stew := mk(f.author, "Stew", 2*time.Hour, f.dinner)
	mk(f.other, "Cake", 3*time.Hour)

	_, err := f.svc.AddToList(ctx, as(f.other), service.Favorites, soup.ID)
	require.NoError(t, err)
	_, err = f.svc.AddToList(ctx, as(f.other), service.ShoppingCart, stew.ID)
	require.NoError(t, err)

	page := service.PageRequest{Page: 1, Limit: 10}
	names := func(rc service.RequestContext) []string {
		t.Helper()
		results, _, err := f.svc.List(ctx, rc, page)
		require.NoError(t, err)
		out := make([]string, 0, len(results))
		for _, r := range results {
			out = append(out, r.Name)
		}
		return out
	}
	with := func(user *models.User, query url.Values) service.RequestContext {
		return service.RequestContext{User: user, Query: query}
	}

	assert.Equal(t, []string{"Cake", "Stew", "Soup"}, names(anonymous(nil)))
	assert.Equal(t, []string{"Soup"}, names(with(f.other, url.Values{"is_favorited": {"1"}})))
	assert.Equal(t, []string{"Cake", "Stew", "Soup"}, names(with(f.other, url.Values{"is_favorited": {"0"}})))
	assert.Equal(t, []string{"Stew"}, names(with(f.other, url.Values{"is_in_shopping_cart": {"1"}})))
	assert.Empty(t, names(anonymous(url.Values{"is_favorited": {"1"}})))
	assert.Equal(t, []string{"Cake"}, names(with(f.other, url.Values{"author": {"me"}})))
	assert.Empty(t, names(anonymous(url.Values{"author": {"me"}})))
	assert.Equal(t, []string{"Stew", "Soup"}, names(anonymous(url.Values{"author": {f.author.ID.String()}})))
	assert.Equal(t, []string{"Stew", "Soup"}, names(anonymous(url.Values{"tags": {"lunch", "dinner"}})))
	assert.Equal(t, []string{"Stew", "Soup"}, names(anonymous(url.Values{"tags": {"lunch,dinner"}})))
	assert.Equal(t, []string{"Soup"}, names(anonymous(url.Values{"tags": {"lunch"}})))

	_, _, err = f.svc.List(ctx, anonymous(url.Values{"author": {"not-a-uuid"}}), page)
	assert.Contains(t, fieldErrors(t, err), "author")
	_, _, err = f.svc.List(ctx, anonymous(url.Values{"is_favorited": {"yes"}}), page)
	assert.Contains(t, fieldErrors(t, err), "is_favorited")
	_, _, err = f.svc.List(ctx, anonymous(url.Values{"tags": {"lunch,brunch"}}), page)
	assert.Equal(t, []string{"Select a valid choice. brunch is not one of the available choices."}, fieldErrors(t, err)["tags"])
}

func TestListRecipesPagination(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		testhelpers.CreateRecipe(t, f.db, f.author, name)
	}

	results, count, err := f.svc.List(ctx, anonymous(nil), service.PageRequest{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.Len(t, results, 2)

	_, _, err = f.svc.List(ctx, anonymous(nil), service.PageRequest{Page: 3, Limit: 5})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListRecipesPagesAreStableForEqualPubDates(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	published := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		r := &models.Recipe{AuthorID: f.author.ID, Name: name, Image: "recipes/images/x.png", Text: "t", CookingTime: 5, PubDate: published}
		require.NoError(t, f.db.Create(r).Error)
	}

	seen := make(map[uuid.UUID]bool)
	for pageNo := 1; pageNo <= 4; pageNo++ {
		results, count, err := f.svc.List(ctx, anonymous(nil), service.PageRequest{Page: pageNo, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(7), count)
		for _, r := range results {
			assert.False(t, seen[r.ID], "recipe %s repeated on page %d", r.Name, pageNo)
			seen[r.ID] = true
		}
	}
	assert.Len(t, seen, 7)
}

func TestShoppingListAggregates(t *testing.T) {
	f := setupRecipeTest(t)
	ctx := context.Background()

	soup := testhelpers.CreateRecipe(t, f.db, f.author, "Soup")
	stew := testhelpers.CreateRecipe(t, f.db, f.author, "Stew")
	unused := testhelpers.CreateRecipe(t, f.db, f.author, "Cake")
	testhelpers.AddIngredient(t, f.db, soup, f.salt, 5)
	testhelpers.AddIngredient(t, f.db, stew, f.salt, 10)
	testhelpers.AddIngredient(t, f.db, stew, f.flour, 100)
	testhelpers.AddIngredient(t, f.db, unused, f.flour, 999)

	for _, r := range []*models.Recipe{soup, stew} {
		_, err := f.svc.AddToList(ctx, as(f.other), service.ShoppingCart, r.ID)
		require.NoError(t, err)
	}

	items, err := f.svc.ShoppingList(ctx, as(f.other))
	require.NoError(t, err)
	assert.Equal(t, []service.ShoppingListItem{
		{Name: "Flour", MeasurementUnit: "g", Total: 100},
		{Name: "Salt", MeasurementUnit: "g", Total: 15},
	}, items)

	text := string(service.RenderShoppingList(f.other.Username, items))
	assert.Equal(t, "other, here is your shopping list:\nFlour (g) - 100\nSalt (g) - 15\nfoodgram", text)

	empty, err := f.svc.ShoppingList(ctx, as(f.author))
	require.NoError(t, err)
	assert.Empty(t, empty)
}
