package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/service"
	"github.com/sakif/foodgram/internal/shopping"
)

// RecipeHandler serves /api/recipes/ and the per-recipe actions hanging off
// it: favorite, shopping cart, short link and the shopping-list download.
//
// DEPENDENCY CHAIN:
//   - recipes   → CRUD, filtering, composition rules
//   - relations → favorite / shopping-cart toggles
//   - shopping  → aggregated shopping list
//   - links     → short links
type RecipeHandler struct {
	recipes   *service.RecipeService
	relations *service.RelationService
	shopping  *service.ShoppingService
	links     *service.ShortLinkService
	logger    *slog.Logger
}

func NewRecipeHandler(
	recipes *service.RecipeService,
	relations *service.RelationService,
	shoppingList *service.ShoppingService,
	links *service.ShortLinkService,
	logger *slog.Logger,
) *RecipeHandler {
	return &RecipeHandler{
		recipes:   recipes,
		relations: relations,
		shopping:  shoppingList,
		links:     links,
		logger:    logger,
	}
}

// HandleList returns one page of recipes, newest first.
//
// HTTP: GET /api/recipes/
//
// QUERY FILTERS (all optional, combined with AND):
//
//	author=<id>             only this author's recipes
//	tags=<slug>&tags=<slug> recipes carrying ANY of these tags
//	is_favorited=1          only the caller's favorites
//	is_in_shopping_cart=1   only recipes in the caller's cart
//
// The last two yield an empty page for anonymous callers.
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	author, err := queryInt(r, "author", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.recipes.List(r.Context(), viewerID(r), service.RecipeQuery{
		PageRequest:   page,
		AuthorID:      int64(author),
		TagSlugs:      r.URL.Query()["tags"],
		OnlyFavorited: queryFlag(r, "is_favorited"),
		OnlyInCart:    queryFlag(r, "is_in_shopping_cart"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPagedResponse(r, result))
}

// HandleCreate publishes a recipe.
//
// HTTP: POST /api/recipes/
// REQUEST BODY:
//
//	{
//	  "ingredients": [{"id": 1123, "amount": 10}],
//	  "tags": [1, 2],
//	  "image": "data:image/png;base64,...",
//	  "name": "string",
//	  "text": "string",
//	  "cooking_time": 1
//	}
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	recipe, err := h.recipes.Create(r.Context(), viewerID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

// HTTP: GET /api/recipes/{id}/
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "recipe")
	if err != nil {
		writeError(w, err)
		return
	}
	recipe, err := h.recipes.Get(r.Context(), viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// HandleUpdate applies a partial update. tags and ingredients are always
// required; the other fields keep their value when omitted.
//
// HTTP: PATCH /api/recipes/{id}/
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "recipe")
	if err != nil {
		writeError(w, err)
		return
	}
	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	recipe, err := h.recipes.Update(r.Context(), viewerID(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// HTTP: DELETE /api/recipes/{id}/
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "recipe")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.recipes.Delete(r.Context(), viewerID(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddRelation returns a handler that adds the recipe to the caller's
// favorites or cart, depending on kind.
//
// HTTP: POST /api/recipes/{id}/favorite/
// HTTP: POST /api/recipes/{id}/shopping_cart/
//
// RESPONSE (201): {"id", "name", "image", "cooking_time"}
func (h *RecipeHandler) HandleAddRelation(kind model.RelationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id", "recipe")
		if err != nil {
			writeError(w, err)
			return
		}
		short, err := h.relations.Add(r.Context(), kind, viewerID(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, short)
	}
}

// HandleRemoveRelation is the DELETE counterpart of HandleAddRelation.
func (h *RecipeHandler) HandleRemoveRelation(kind model.RelationKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id", "recipe")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.relations.Remove(r.Context(), kind, viewerID(r), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGetLink returns the recipe's short link.
//
// HTTP: GET /api/recipes/{id}/get-link/
// RESPONSE: {"short-link": "https://foodgram.example.com/s/Ab3dE9"}
func (h *RecipeHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "recipe")
	if err != nil {
		writeError(w, err)
		return
	}
	link, err := h.links.Link(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"short-link": link})
}

// HandleDownloadShoppingCart sends the aggregated shopping list as a file.
//
// HTTP: GET /api/recipes/download_shopping_cart/?format=csv|txt
//
// The list is rendered into a buffer first so a rendering failure can still
// become a proper error response instead of a truncated download.
func (h *RecipeHandler) HandleDownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	format, ok := shopping.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeError(w, apperror.ValidationFailed("format", "format must be csv or txt"))
		return
	}

	items, err := h.shopping.List(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := shopping.Render(&buf, format, items); err != nil {
		writeError(w, fmt.Errorf("rendering shopping list: %w", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to send shopping list", slog.String("error", err.Error()))
	}
}
