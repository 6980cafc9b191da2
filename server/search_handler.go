package server

import (
	"net/http"
	"strconv"
	"strings"

	"tunevault/core/search"
)

// SearchHandler 搜索当前用户的目录
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.search.Search(r.Context(), req, ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// FiltersHandler 返回筛选项（facets）
func (h *APIHandler) FiltersHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	facets, err := h.search.Facets(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

// SuggestionsHandler 搜索联想 ?q=&limit=
func (h *APIHandler) SuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := OwnerIDFromContext(r.Context())
	limit := search.DefaultSuggestLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > search.MaxSuggestLimit {
			writeError(w, r, badRequest("limit must be between 1 and 50"))
			return
		}
		limit = n
	}
	suggestions, err := h.search.Suggest(r.Context(), r.URL.Query().Get("q"), ownerID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}
