package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	maxImageUploadSize   = 10 << 20
	maxRecipeBodySize    = maxImageUploadSize*4/3 + 1<<20
	multipartMemory      = 32 << 20
	shoppingListFilename = "shopping_cart.txt"
)

// RecipeHandler serves recipes and the per-user favorite and cart lists.
type RecipeHandler struct {
	recipeService *service.RecipeService
	pagination    Pagination
	createLimiter *middleware.RateLimiter
	requireAuth   gin.HandlerFunc
	optionalAuth  gin.HandlerFunc
}

func NewRecipeHandler(recipeService *service.RecipeService, pagination Pagination, createLimiter *middleware.RateLimiter, requireAuth, optionalAuth gin.HandlerFunc) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		pagination:    pagination,
		createLimiter: createLimiter,
		requireAuth:   requireAuth,
		optionalAuth:  optionalAuth,
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup) {
	recipes := router.Group("/recipes")
	{
		recipes.GET("", h.optionalAuth, h.ListRecipes)
		recipes.POST("", h.requireAuth, h.createLimiter.Middleware(), h.CreateRecipe)
		recipes.GET("/download_shopping_cart", h.requireAuth, h.DownloadShoppingCart)
		recipes.GET("/:id", h.optionalAuth, h.GetRecipe)
		recipes.PUT("/:id", h.requireAuth, h.UpdateRecipe)
		recipes.PATCH("/:id", h.requireAuth, h.UpdateRecipe)
		recipes.DELETE("/:id", h.requireAuth, h.DeleteRecipe)
		recipes.POST("/:id/favorite", h.requireAuth, h.addTo(service.Favorites))
		recipes.DELETE("/:id/favorite", h.requireAuth, h.removeFrom(service.Favorites))
		recipes.POST("/:id/shopping_cart", h.requireAuth, h.addTo(service.ShoppingCart))
		recipes.DELETE("/:id/shopping_cart", h.requireAuth, h.removeFrom(service.ShoppingCart))
	}
}

// ListRecipes supports is_favorited, is_in_shopping_cart, author and tags
// filters on top of pagination.
func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	page, err := h.pagination.parse(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipes, count, err := h.recipeService.List(c.Request.Context(), requestContext(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page, recipes, count)
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := h.recipeService.Get(c.Request.Context(), requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	req, err := bindRecipe(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := h.recipeService.Create(c.Request.Context(), requestContext(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := bindRecipe(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := h.recipeService.Update(c.Request.Context(), requestContext(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.recipeService.Delete(c.Request.Context(), requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) addTo(kind service.ListKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		recipe, err := h.recipeService.AddToList(c.Request.Context(), requestContext(c), kind, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, recipe)
	}
}

func (h *RecipeHandler) removeFrom(kind service.ListKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuidParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}

		if err := h.recipeService.RemoveFromList(c.Request.Context(), requestContext(c), kind, id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DownloadShoppingCart sends the summed ingredients of the requester's cart
// as a text attachment.
func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	rc := requestContext(c)
	items, err := h.recipeService.ShoppingList(c.Request.Context(), rc)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", shoppingListFilename))
	c.Data(http.StatusOK, "text/plain;charset=UTF-8", service.RenderShoppingList(rc.User.Username, items))
}

// bindRecipe decodes a recipe write from JSON or from a multipart form. The
// body may hold one maximum-size image as a data URL plus 1 MB for the rest.
func bindRecipe(c *gin.Context) (*types.RecipeWriteRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRecipeBodySize)

	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bindingError(err)
		}
		return bindRecipeForm(c)
	}

	var req types.RecipeWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, bindingError(err)
	}
	return &req, nil
}

// bindRecipeForm reads a multipart recipe. Ingredients arrive as a JSON list;
// tags as repeated ids or one JSON list; the image as a file part or a data
// URL.
func bindRecipeForm(c *gin.Context) (*types.RecipeWriteRequest, error) {
	req := &types.RecipeWriteRequest{
		Name:  c.PostForm("name"),
		Text:  c.PostForm("text"),
		Image: c.PostForm("image"),
	}
	v := &service.ValidationError{}

	if raw := strings.TrimSpace(c.PostForm("cooking_time")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v.Add("cooking_time", "A valid integer is required.")
		} else {
			req.CookingTime = &n
		}
	}

	if raw := c.PostForm("ingredients"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Ingredients); err != nil {
			v.Add("ingredients", "Expected a list of {id, amount} items.")
		}
	}

	for _, raw := range c.PostFormArray("tags") {
		ids, err := parseTagIDs(raw)
		if err != nil {
			v.Add("tags", "Expected a list of tag ids.")
			break
		}
		req.Tags = append(req.Tags, ids...)
	}

	header, err := c.FormFile("image")
	switch {
	case err == nil:
		file, err := readUpload(header)
		if err != nil {
			v.Add("image", err.Error())
		} else {
			req.ImageFile = file
		}
	case !errors.Is(err, http.ErrMissingFile):
		v.Add("image", "The submitted data was not a file.")
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

func parseTagIDs(raw string) ([]uint, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var ids []uint
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}

	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func readUpload(header *multipart.FileHeader) (*types.ImageFile, error) {
	if header.Size > maxImageUploadSize {
		return nil, fmt.Errorf("image must be at most %d MB", maxImageUploadSize>>20)
	}

	f, err := header.Open()
	if err != nil {
		return nil, errors.New("the uploaded file could not be read")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageUploadSize+1))
	if err != nil {
		return nil, errors.New("the uploaded file could not be read")
	}
	if len(data) > maxImageUploadSize {
		return nil, fmt.Errorf("image must be at most %d MB", maxImageUploadSize>>20)
	}

	return &types.ImageFile{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}
