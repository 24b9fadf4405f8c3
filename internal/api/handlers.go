package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	DB            *gorm.DB
	Auth          *service.AuthService
	Users         *service.UserService
	Recipes       *service.RecipeService
	Catalog       *service.CatalogService
	RecipeLimiter *middleware.RateLimiter
	Pagination    Pagination
}

// RegisterRoutes registers all API routes
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	useJSONFieldNames()

	health := HealthCheck(deps.DB)
	router.GET("/health", health)
	router.GET("/api/health", health)

	requireAuth := middleware.AuthMiddleware(deps.Auth)
	optionalAuth := middleware.OptionalAuth(deps.Auth)

	group := router.Group("/api")
	NewAuthHandler(deps.Auth, requireAuth).RegisterRoutes(group)
	NewUserHandler(deps.Users, deps.Pagination, requireAuth, optionalAuth).RegisterRoutes(group)
	NewRecipeHandler(deps.Recipes, deps.Pagination, deps.RecipeLimiter, requireAuth, optionalAuth).RegisterRoutes(group)
	NewCatalogHandler(deps.Catalog).RegisterRoutes(group)
}

// HealthCheck reports whether the API and its database are reachable.
func HealthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.HealthCheck(ctx, db); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Foodgram API is running",
		})
	}
}

// requestContext describes the requester to the service layer.
func requestContext(c *gin.Context) service.RequestContext {
	return service.RequestContext{
		User:  middleware.CurrentUser(c),
		Query: c.Request.URL.Query(),
	}
}

// uuidParam parses a path id. A malformed id cannot name anything, so it is
// reported as ErrNotFound.
func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, service.ErrNotFound
	}
	return id, nil
}

func uintParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, service.ErrNotFound
	}
	return uint(id), nil
}
