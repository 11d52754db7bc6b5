// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values (IDs, input structs), never *http.Request,
// and return apperror values, never status codes. The same RecipeService
// backs the HTTP API and could back a CLI without changes.
//
// DEPENDENCY INJECTION:
// Every service takes repository INTERFACES, not *sqlite.DB. Tests pass the
// in-memory fake from fake_test.go; main.go passes the SQLite store.
//
// IDENTITY IS AN ARGUMENT:
// Operations that depend on who is asking take the caller's user ID as an
// explicit parameter (viewerID, userID). 0 means an anonymous caller.
package service

import (
	"math"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/repository"
)

// Pagination limits for list endpoints.
const (
	DefaultPageSize = 6
	MaxPageSize     = 100

	// maxPage keeps Page*Limit inside int for any accepted Limit.
	maxPage = math.MaxInt / MaxPageSize
)

// PageRequest is a 1-based page number and a page size as sent by the client.
// Zero values mean "first page" and "default size".
type PageRequest struct {
	Page  int
	Limit int
}

// normalize clamps the request to sane values.
func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p PageRequest) listOptions() repository.ListOptions {
	return repository.ListOptions{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

// Page is one page of results plus what a client needs to fetch the next.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

func newPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: req.Page, Limit: req.Limit}
}

// HasNext reports whether a later page has results.
func (p Page[T]) HasNext() bool {
	return p.Page*p.Limit < p.Total
}

// HasPrevious reports whether this is not the first page.
func (p Page[T]) HasPrevious() bool {
	return p.Page > 1
}

// requireUser rejects anonymous callers on operations that need an identity.
// The HTTP layer already enforces this with RequireAuth; the check keeps the
// services safe for other callers.
func requireUser(userID int64) error {
	if userID <= 0 {
		return apperror.Unauthorized("authentication credentials were not provided")
	}
	return nil
}
