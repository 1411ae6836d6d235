package public

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, common.MaxJSONRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeAuthError maps authentication failures onto HTTP statuses.
func (h *Handler) writeAuthError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, publicapp.ErrInvalidCredentials), errors.Is(err, publicapp.ErrInvalidIDToken):
		common.WriteError(h.logger, w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, publicapp.ErrEmailTaken):
		common.WriteError(h.logger, w, http.StatusConflict, err.Error())
	case errors.Is(err, publicapp.ErrUserNotFound):
		common.WriteError(h.logger, w, http.StatusNotFound, err.Error())
	case errors.Is(err, publicapp.ErrUnsupportedProvider), errors.Is(err, publicapp.ErrPendingStateNotFound):
		common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		common.WriteError(h.logger, w, http.StatusInternalServerError, op+" failed")
	}
}

func (h *Handler) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		req.Username = strings.TrimSpace(req.Username)
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		accountType, err := domain.ParseAccountType(req.Type)
		if err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.auth.RegisterUser(ctx, h.session(r), publicapp.RegisterUserCommand{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Username: req.Username,
			Type:     accountType,
			Bio:      strings.TrimSpace(req.Bio),
		})
		if err != nil {
			h.writeAuthError(w, "registration", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusCreated, toAuthResponse(result))
	}
}

func (h *Handler) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.auth.LoginUser(ctx, h.session(r), req.Email, req.Password)
		if err != nil {
			h.writeAuthError(w, "login", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, toAuthResponse(result))
	}
}

func (h *Handler) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := common.UserFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		if err := h.auth.LogoutUser(ctx, h.session(r), user.Token); err != nil {
			h.writeAuthError(w, "logout", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) socialLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := domain.ParseProvider(chi.URLParam(r, "provider"))
		if err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, publicapp.ErrUnsupportedProvider.Error())
			return
		}

		var req socialLoginRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.auth.LoginWithProvider(ctx, h.session(r), provider, strings.TrimSpace(req.IDToken))
		if err != nil {
			h.writeAuthError(w, "social sign-in", err)
			return
		}
		status := http.StatusOK
		if result.Pending {
			status = http.StatusAccepted
		}
		common.WriteJSON(h.logger, w, status, toSocialLoginResponse(result))
	}
}

func (h *Handler) redirectResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req redirectResultRequest
		if err := decodeJSON(r, &req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.auth.HandleRedirectResult(ctx, h.session(r), strings.TrimSpace(req.State), strings.TrimSpace(req.IDToken))
		if err != nil {
			h.writeAuthError(w, "redirect sign-in", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, toSocialLoginResponse(result))
	}
}

func (h *Handler) authVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := common.UserFromContext(r.Context())
		if !ok {
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to read authenticated user")
			return
		}

		common.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
			"status": "ok",
			"user":   user,
		})
	}
}

func (h *Handler) currentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := common.UserFromContext(r.Context())
		if !ok {
			common.WriteError(h.logger, w, http.StatusInternalServerError, "failed to read authenticated user")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		user, err := h.auth.CurrentUser(ctx, principal.ID)
		if err != nil {
			h.writeAuthError(w, "profile lookup", err)
			return
		}
		common.WriteJSON(h.logger, w, http.StatusOK, toUserResponse(user))
	}
}
