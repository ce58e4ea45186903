package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/udegarami/llmapi/internal/history"
)

// HistoryStore is the slice of the history store the API needs.
type HistoryStore interface {
	List(ctx context.Context, limit, offset int) ([]history.Exchange, error)
	SearchSimilar(ctx context.Context, query string, topK int) ([]history.SearchResult, error)
}

// HistoryHandler serves stored exchanges.
type HistoryHandler struct {
	store HistoryStore
}

func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	exchanges, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to list exchanges: "+err.Error())
		return
	}
	if exchanges == nil {
		exchanges = []history.Exchange{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exchanges": exchanges,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *HistoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeDetail(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	topK := queryInt(r, "k", 10)

	results, err := h.store.SearchSimilar(r.Context(), query, topK)
	if err != nil {
		if errors.Is(err, history.ErrSearchUnavailable) {
			writeDetail(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeDetail(w, http.StatusInternalServerError, "search failed: "+err.Error())
		return
	}
	if results == nil {
		results = []history.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
