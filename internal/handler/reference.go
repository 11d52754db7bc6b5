package handler

import (
	"net/http"

	"github.com/sakif/foodgram/internal/service"
)

// ReferenceHandler serves the read-only tag and ingredient lists. Neither is
// paginated: both are small and the frontend loads them whole.
type ReferenceHandler struct {
	refs *service.ReferenceService
}

func NewReferenceHandler(refs *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{refs: refs}
}

// HTTP: GET /api/tags/?slug=breakfast
func (h *ReferenceHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.refs.ListTags(r.Context(), r.URL.Query().Get("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// HTTP: GET /api/tags/{id}/
func (h *ReferenceHandler) HandleGetTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "tag")
	if err != nil {
		writeError(w, err)
		return
	}
	tag, err := h.refs.GetTag(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// HTTP: GET /api/ingredients/?name=sa
func (h *ReferenceHandler) HandleListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.refs.ListIngredients(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// HTTP: GET /api/ingredients/{id}/
func (h *ReferenceHandler) HandleGetIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "ingredient")
	if err != nil {
		writeError(w, err)
		return
	}
	ingredient, err := h.refs.GetIngredient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}
