package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

// Pagination holds the page size settings of list endpoints.
type Pagination struct {
	DefaultSize int
	MaxSize     int
}

// parse reads the page and limit query parameters. A malformed page is
// reported as ErrNotFound; a malformed limit falls back to the default.
func (p Pagination) parse(c *gin.Context) (service.PageRequest, error) {
	req := service.PageRequest{Page: 1, Limit: p.DefaultSize}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return req, service.ErrNotFound
		}
		req.Page = page
	}

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			req.Limit = limit
		}
	}
	if p.MaxSize > 0 && req.Limit > p.MaxSize {
		req.Limit = p.MaxSize
	}
	return req, nil
}

// pageURL returns the absolute URL of the current request with page
// replaced. Page 1 drops the parameter.
func pageURL(c *gin.Context, page int) *string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	s := u.String()
	return &s
}

func newPage[T any](c *gin.Context, req service.PageRequest, results []T, count int64) types.Page[T] {
	page := types.Page[T]{Count: count, Results: results}
	if page.Results == nil {
		page.Results = []T{}
	}
	if int64(req.Page*req.Limit) < count {
		page.Next = pageURL(c, req.Page+1)
	}
	if req.Page > 1 {
		page.Previous = pageURL(c, req.Page-1)
	}
	return page
}

func respondPage[T any](c *gin.Context, req service.PageRequest, results []T, count int64) {
	c.JSON(http.StatusOK, newPage(c, req, results, count))
}
