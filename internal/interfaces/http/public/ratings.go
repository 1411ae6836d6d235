package public

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
)

func (h *Handler) ratingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		cafeID := strings.TrimSpace(chi.URLParam(r, "id"))
		limit, _ := common.ParsePositiveInt(r.URL.Query().Get("limit"), publicapp.DefaultRatingsLimit)

		ratings, err := h.ratingQueries.ListByCafe(ctx, cafeID, limit)
		if err != nil {
			h.logger.Error("rating list fetch failed", zap.String("cafeId", cafeID), zap.Error(err))
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to fetch ratings")
			return
		}

		items := make([]ratingResponse, 0, len(ratings))
		for _, rating := range ratings {
			items = append(items, toRatingResponse(rating))
		}
		common.WriteJSON(h.logger, w, http.StatusOK, ratingListResponse{Items: items})
	}
}

// ratingCreateHandler accepts multipart/form-data with rating, comment, tags
// and up to five images.
func (h *Handler) ratingCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := common.UserFromContext(r.Context())
		if !ok {
			common.WriteError(h.logger, w, http.StatusUnauthorized, "authentication required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, common.MaxRatingImageCount*common.MaxImageBytes+common.MaxJSONRequestBody)
		if err := r.ParseMultipartForm(common.MaxJSONRequestBody); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		form, err := parseRatingForm(r)
		if err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		images, err := common.ReadImageFiles(r.MultipartForm, "images", common.MaxRatingImageCount, common.MaxImageBytes)
		if err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}

		cmd := publicapp.SubmitRatingCommand{
			CafeID:       strings.TrimSpace(chi.URLParam(r, "id")),
			AuthorID:     user.ID,
			AuthorName:   authorName(user),
			AuthorAvatar: user.Picture,
			Stars:        form.Stars,
			Comment:      form.Comment,
			Tags:         form.Tags,
		}
		for _, img := range images {
			cmd.Images = append(cmd.Images, publicapp.ImageUpload{Data: img.Data, ContentType: img.ContentType})
		}

		// uploads are sequential, so allow more than the default timeout
		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout*time.Duration(len(images)+1))
		defer cancel()

		rating, err := h.ratingCommands.Submit(ctx, cmd)
		if err != nil {
			switch {
			case errors.Is(err, publicapp.ErrInvalidStars):
				common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			case errors.Is(err, publicapp.ErrCafeNotFound):
				common.WriteError(h.logger, w, http.StatusNotFound, "cafe not found")
			default:
				h.logger.Error("rating submit failed", zap.String("cafeId", cmd.CafeID), zap.String("userId", user.ID), zap.Error(err))
				common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to submit rating")
			}
			return
		}

		common.WriteJSON(h.logger, w, http.StatusCreated, toRatingResponse(*rating))
	}
}

func parseRatingForm(r *http.Request) (createRatingForm, error) {
	var form createRatingForm
	raw := strings.TrimSpace(r.FormValue("rating"))
	stars, err := strconv.Atoi(raw)
	if err != nil {
		return form, publicapp.ErrInvalidStars
	}
	form.Stars = stars
	form.Comment = strings.TrimSpace(r.FormValue("comment"))
	if form.Comment == "" {
		return form, errors.New("comment is required")
	}
	if utf8.RuneCountInString(form.Comment) > common.MaxCommentRunes {
		return form, errors.New("comment must be at most 2000 characters")
	}

	tags, err := common.NormalizeRatingTags(common.SplitTagValues(r.MultipartForm.Value["tags"]))
	if err != nil {
		return form, err
	}
	form.Tags = tags

	if err := common.ValidateStruct(form); err != nil {
		return form, err
	}
	return form, nil
}

func authorName(user common.AuthenticatedUser) string {
	if name := strings.TrimSpace(user.Name); name != "" {
		return name
	}
	if username := strings.TrimSpace(user.Username); username != "" {
		return username
	}
	return "Anonymous"
}

func (h *Handler) ratingHelpfulToggleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ratingID := strings.TrimSpace(chi.URLParam(r, "id"))
		if ratingID == "" {
			common.WriteError(h.logger, w, http.StatusBadRequest, "rating id is required")
			return
		}

		payload := struct {
			Helpful *bool `json:"helpful"`
		}{}
		desired := true
		if r.Body != nil {
			defer r.Body.Close()
			decoder := json.NewDecoder(io.LimitReader(r.Body, 1024))
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
				common.WriteError(h.logger, w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if payload.Helpful != nil {
			desired = *payload.Helpful
		}

		voterID, err := h.ensureHelpfulVoterID(w, r)
		if err != nil {
			h.logger.Error("helpful voter cookie error", zap.Error(err))
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to record vote")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		count, err := h.ratingCommands.ToggleHelpful(ctx, ratingID, voterID, desired)
		if err != nil {
			if errors.Is(err, publicapp.ErrRatingNotFound) {
				common.WriteError(h.logger, w, http.StatusNotFound, "rating not found")
				return
			}
			h.logger.Error("helpful toggle failed", zap.String("ratingId", ratingID), zap.String("voterId", voterID), zap.Error(err))
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to record vote")
			return
		}

		common.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
			"helpful":      desired,
			"helpfulCount": count,
		})
	}
}
