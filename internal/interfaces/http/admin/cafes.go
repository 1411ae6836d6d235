package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
)

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, adminapp.ErrCafeNotFound):
		common.WriteError(h.logger, w, http.StatusNotFound, "cafe not found")
	case errors.Is(err, adminapp.ErrNotCafeOwner):
		common.WriteError(h.logger, w, http.StatusForbidden, err.Error())
	case errors.Is(err, adminapp.ErrInvalidCafe):
		common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, adminapp.ErrAggregateChanged):
		common.WriteError(h.logger, w, http.StatusConflict, "ratings changed while reconciling, try again")
	default:
		h.logger.Error("admin "+op+" failed", zap.Error(err))
		common.WriteError(h.logger, w, http.StatusInternalServerError, op+" failed")
	}
}

func (h *Handler) cafeListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		user, _ := common.UserFromContext(r.Context())
		query := r.URL.Query()
		page, _ := common.ParsePositiveInt(query.Get("page"), 1)
		limit, _ := common.ParsePositiveInt(query.Get("limit"), 20)

		filter := adminapp.CafeFilter{Keyword: strings.TrimSpace(query.Get("keyword"))}
		if strings.EqualFold(query.Get("mine"), "true") {
			filter.OwnerID = user.ID
		}

		cafes, err := h.cafeService.List(ctx, filter, adminapp.Paging{Page: page, Limit: limit})
		if err != nil {
			h.writeServiceError(w, "cafe list", err)
			return
		}

		items := make([]adminCafeResponse, 0, len(cafes))
		for _, c := range cafes {
			items = append(items, adminCafeDomainToResponse(c))
		}
		common.WriteJSON(h.logger, w, http.StatusOK, adminCafeListResponse{Items: items, Page: page, Limit: limit})
	}
}

func (h *Handler) cafeDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		cafe, err := h.cafeService.Detail(ctx, strings.TrimSpace(chi.URLParam(r, "id")))
		if err != nil {
			h.writeServiceError(w, "cafe detail", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, adminCafeDomainToResponse(*cafe))
	}
}

// cafeCreateHandler takes multipart/form-data: a JSON "cafe" field plus
// optional "images" files.
func (h *Handler) cafeCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := common.UserFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, common.MaxMultipartBody)
		if err := r.ParseMultipartForm(common.MaxJSONRequestBody); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		var req adminCafeRequest
		if err := decodeStrict(strings.NewReader(r.FormValue("cafe")), &req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}

		files, err := common.ReadImageFiles(r.MultipartForm, "images", common.MaxCafeImageCount, common.MaxImageBytes)
		if err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		images := make([]adminapp.ImageUpload, 0, len(files))
		for _, f := range files {
			images = append(images, adminapp.ImageUpload{Data: f.Data, ContentType: f.ContentType})
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout*time.Duration(len(images)+1))
		defer cancel()

		cafe, err := h.cafeService.Register(ctx, req.toCommand(user.ID), images)
		if err != nil {
			h.writeServiceError(w, "cafe registration", err)
			return
		}
		h.logger.Info("cafe registered", zap.String("cafeId", cafe.ID), zap.String("ownerId", user.ID), zap.Int("images", len(cafe.Images)))
		common.WriteJSON(h.logger, w, http.StatusCreated, adminCafeDomainToResponse(*cafe))
	}
}

func (h *Handler) cafeUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := common.UserFromContext(r.Context())

		defer r.Body.Close()
		var req adminCafeRequest
		if err := decodeStrict(io.LimitReader(r.Body, common.MaxJSONRequestBody), &req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		cafe, err := h.cafeService.Update(ctx, strings.TrimSpace(chi.URLParam(r, "id")), req.toCommand(user.ID))
		if err != nil {
			h.writeServiceError(w, "cafe update", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, adminCafeDomainToResponse(*cafe))
	}
}

func (h *Handler) cafeReconcileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := common.UserFromContext(r.Context())
		id := strings.TrimSpace(chi.URLParam(r, "id"))

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		cafe, err := h.cafeService.Detail(ctx, id)
		if err != nil {
			h.writeServiceError(w, "cafe reconcile", err)
			return
		}
		if cafe.OwnerID != "" && cafe.OwnerID != user.ID {
			h.writeServiceError(w, "cafe reconcile", adminapp.ErrNotCafeOwner)
			return
		}

		agg, err := h.cafeService.Reconcile(ctx, id)
		if err != nil {
			h.writeServiceError(w, "cafe reconcile", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, reconcileResponse{CafeID: id, Rating: toAggregateResponse(*agg)})
	}
}

func decodeStrict(r io.Reader, dst any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
