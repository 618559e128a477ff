package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListCategories returns all categories with tweet counts.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryRepo.List(r.Context())
	if err != nil {
		writeInternalError(w, r, "Failed to fetch categories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// ListSubtags returns every subtag in use, sorted.
func (h *Handler) ListSubtags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.categoryRepo.Subtags(r.Context())
	if err != nil {
		writeInternalError(w, r, "Failed to fetch subtags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// ListCategoryTags returns the subtags used within one category.
func (h *Handler) ListCategoryTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.categoryRepo.TagsForCategory(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeInternalError(w, r, "Failed to fetch category tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
