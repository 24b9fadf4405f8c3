package service

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/pageza/foodgram/backend/internal/models"
)

// RequestContext carries the requester and query parameters into services.
// User is nil for anonymous requests.
type RequestContext struct {
	User  *models.User
	Query url.Values
}

func (rc RequestContext) Authenticated() bool {
	return rc.User != nil
}

func (rc RequestContext) UserID() uuid.UUID {
	if rc.User == nil {
		return uuid.Nil
	}
	return rc.User.ID
}

// PageRequest selects one page of a list. Page is 1-based.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// checkPage rejects pages past the end. The first page always exists.
func checkPage(p PageRequest, count int64) error {
	if p.Page > 1 && int64(p.Offset()) >= count {
		return ErrNotFound
	}
	return nil
}
