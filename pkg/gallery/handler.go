package gallery

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Handler serves GET /images and /images.json with CORS headers for the
// site's gallery view.
type Handler struct {
	lister *Lister
}

// NewHandler returns an HTTP handler over lister.
func NewHandler(lister *Lister) *Handler {
	return &Handler{lister: lister}
}

func setCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "86400")
	h.Set("Vary", "Origin")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORS(w, r)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.URL.Path != "/images" && r.URL.Path != "/images.json" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	setCORS(w, r)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	prefix := r.URL.Query().Get("prefix")

	images, err := h.lister.ListImages(r.Context(), prefix, limit)
	if err != nil {
		slog.Warn("gallery listing failed", "prefix", prefix, "error", err)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "listing failed"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"images": images,
		"count":  len(images),
	})
}
