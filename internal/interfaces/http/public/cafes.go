package public

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
)

// cafeListHandler searches cafés by name prefix and tags.
func (h *Handler) cafeListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		query := r.URL.Query()
		term := strings.TrimSpace(query.Get("q"))
		tags := common.NormalizeSearchTags(common.SplitTagValues(query["tags"]))
		limit, _ := common.ParsePositiveInt(query.Get("limit"), publicapp.DefaultSearchLimit)

		cafes, err := h.cafeQueries.Search(ctx, term, tags, limit)
		if err != nil {
			h.logger.Error("cafe search failed", zap.String("term", term), zap.Error(err))
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to search cafes")
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, toCafeListResponse(cafes))
	}
}

func (h *Handler) cafePopularHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		limit, _ := common.ParsePositiveInt(r.URL.Query().Get("limit"), publicapp.DefaultPopularLimit)
		cafes, err := h.cafeQueries.Popular(ctx, limit)
		if err != nil {
			h.logger.Error("popular cafes fetch failed", zap.Error(err))
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to fetch popular cafes")
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, toCafeListResponse(cafes))
	}
}

func (h *Handler) cafeDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		id := strings.TrimSpace(chi.URLParam(r, "id"))
		cafe, err := h.cafeQueries.Detail(ctx, id)
		if err != nil {
			if errors.Is(err, publicapp.ErrCafeNotFound) {
				common.WriteError(h.logger, w, http.StatusNotFound, "cafe not found")
				return
			}
			h.logger.Error("cafe detail fetch failed", zap.String("cafeId", id), zap.Error(err))
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to fetch cafe")
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, toCafeResponse(*cafe))
	}
}
