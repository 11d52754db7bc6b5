package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/service"
)

// maxBodyBytes bounds a JSON body. A recipe carries its image inline as
// base64, which is a third larger than the 10 MiB image limit.
const maxBodyBytes = 16 << 20

// decodeJSON reads the request body into dst.
//
// json.NewDecoder(r.Body) reads the body as a stream. http.MaxBytesReader
// stops a client from sending an unbounded body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// pathID parses a numeric URL parameter such as {id}. A malformed ID names
// nothing that can exist, so it is a 404 like any other unknown ID.
func pathID(r *http.Request, name, resource string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}

// viewerID is the authenticated caller, or 0 for an anonymous request.
func viewerID(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// queryInt parses an optional integer query parameter. Absent → def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// queryFlag reports whether a boolean filter such as ?is_favorited=1 is on.
func queryFlag(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "True":
		return true
	}
	return false
}

// pageRequest reads ?page=N&limit=M.
func pageRequest(r *http.Request) (service.PageRequest, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return service.PageRequest{}, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return service.PageRequest{}, err
	}
	return service.PageRequest{Page: page, Limit: limit}, nil
}

// PAGINATED RESPONSES:
// Every list endpoint except tags and ingredients answers with
//
//	{"count": 42, "next": "http://host/api/recipes/?page=3", "previous": "...?page=1", "results": [...]}
//
// next and previous are absolute URLs (or null) so a client can follow them
// without rebuilding query strings.
type pagedResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func newPagedResponse[T any](r *http.Request, p service.Page[T]) pagedResponse[T] {
	resp := pagedResponse[T]{Count: p.Total, Results: p.Items}
	if p.HasNext() {
		next := pageURL(r, p.Page+1)
		resp.Next = &next
	}
	if p.HasPrevious() {
		prev := pageURL(r, p.Page-1)
		resp.Previous = &prev
	}
	return resp
}

// pageURL rebuilds the request URL with a different page number, keeping
// every other query parameter.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
