package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xbookmarks/api/internal/media"
)

// ServeImage streams a tweet image from the media store.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	obj, err := h.mediaStore.Open(r.Context(), key)
	if errors.Is(err, media.ErrObjectNotFound) || errors.Is(err, media.ErrInvalidKey) {
		writeError(w, http.StatusNotFound, notFoundResponse("Image not found"))
		return
	}
	if err != nil {
		writeInternalError(w, r, "Failed to read image", err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, key, obj.ModTime, obj)
}
