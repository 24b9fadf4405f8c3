package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// UserHandler serves accounts and subscriptions.
type UserHandler struct {
	userService  *service.UserService
	pagination   Pagination
	requireAuth  gin.HandlerFunc
	optionalAuth gin.HandlerFunc
}

func NewUserHandler(userService *service.UserService, pagination Pagination, requireAuth, optionalAuth gin.HandlerFunc) *UserHandler {
	return &UserHandler{
		userService:  userService,
		pagination:   pagination,
		requireAuth:  requireAuth,
		optionalAuth: optionalAuth,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.POST("", h.Register)
		users.GET("", h.optionalAuth, h.List)
		users.GET("/me", h.requireAuth, h.Me)
		users.POST("/set_password", h.requireAuth, h.SetPassword)
		users.GET("/subscriptions", h.requireAuth, h.Subscriptions)
		users.GET("/:id", h.optionalAuth, h.Get)
		users.POST("/:id/subscribe", h.requireAuth, h.Subscribe)
		users.DELETE("/:id/subscribe", h.requireAuth, h.Unsubscribe)
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) List(c *gin.Context) {
	page, err := h.pagination.parse(c)
	if err != nil {
		respondError(c, err)
		return
	}

	users, count, err := h.userService.List(c.Request.Context(), requestContext(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page, users, count)
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.Me(c.Request.Context(), requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.userService.Get(c.Request.Context(), requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req types.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	if err := h.userService.SetPassword(c.Request.Context(), requestContext(c), &req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(c *gin.Context) {
	page, err := h.pagination.parse(c)
	if err != nil {
		respondError(c, err)
		return
	}

	authors, count, err := h.userService.Subscriptions(c.Request.Context(), requestContext(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page, authors, count)
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	author, err := h.userService.Subscribe(c.Request.Context(), requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, author)
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.userService.Unsubscribe(c.Request.Context(), requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
