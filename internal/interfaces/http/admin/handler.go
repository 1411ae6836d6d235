package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
)

// Handler wires admin HTTP endpoints to application services.
type Handler struct {
	logger      *zap.Logger
	cafeService adminapp.CafeService
}

// Config provides dependencies for Handler.
type Config struct {
	Logger      *zap.Logger
	CafeService adminapp.CafeService
}

// NewHandler constructs an admin HTTP handler set.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger, cafeService: cfg.CafeService}
}

// Register mounts admin routes onto router. Callers must authenticate the
// request first; every route here requires a café owner account.
func (h *Handler) Register(r chi.Router) {
	r.Use(h.requireCafeOwner)
	r.Get("/cafes", h.cafeListHandler())
	r.Get("/cafes/{id}", h.cafeDetailHandler())
	r.Post("/cafes", h.cafeCreateHandler())
	r.Patch("/cafes/{id}", h.cafeUpdateHandler())
	r.Post("/cafes/{id}/reconcile", h.cafeReconcileHandler())
}

func (h *Handler) requireCafeOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := common.UserFromContext(r.Context())
		if !ok {
			common.WriteError(h.logger, w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsCafeOwner() {
			common.WriteError(h.logger, w, http.StatusForbidden, "cafe owner account required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
