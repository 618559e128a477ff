package handler

import (
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
)

// GetLinkPreview resolves ?url= to a cached Open Graph preview. Fetch
// failures still produce a 200 with null fields; only cache failures are 500s.
func (h *Handler) GetLinkPreview(w http.ResponseWriter, r *http.Request) {
	var target string
	if err := runtime.BindQueryParameter("form", true, true, "url", r.URL.Query(), &target); err != nil {
		writeError(w, http.StatusBadRequest, validationErrorResponse("URL parameter required"))
		return
	}
	target = strings.TrimSpace(target)
	if target == "" {
		writeError(w, http.StatusBadRequest, validationErrorResponse("URL parameter required"))
		return
	}

	preview, err := h.resolver.Resolve(r.Context(), target)
	if err != nil {
		writeInternalError(w, r, "Failed to fetch link preview", err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
