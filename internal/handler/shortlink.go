package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodgram/internal/service"
)

// ShortLinkHandler resolves /s/{code} links.
type ShortLinkHandler struct {
	links  *service.ShortLinkService
	logger *slog.Logger
}

func NewShortLinkHandler(links *service.ShortLinkService, logger *slog.Logger) *ShortLinkHandler {
	return &ShortLinkHandler{links: links, logger: logger}
}

// HandleRedirect sends the browser to the recipe page.
//
// HTTP: GET /s/{code}
//
// 302 Found rather than 301: a permanent redirect would be cached by the
// browser forever, and a deleted recipe's code must start answering 404.
func (h *ShortLinkHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	recipeID, err := h.links.Resolve(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Debug("short link resolved",
		slog.String("code", code),
		slog.Int64("recipeID", recipeID),
	)
	http.Redirect(w, r, service.RecipePath(recipeID), http.StatusFound)
}
