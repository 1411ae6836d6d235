package public

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
)

// SubscriberGauge tracks open auth event streams.
type SubscriberGauge interface {
	AuthSubscriberOpened()
	AuthSubscriberClosed()
}

type nopGauge struct{}

func (nopGauge) AuthSubscriberOpened() {}
func (nopGauge) AuthSubscriberClosed() {}

// Middlewares are supplied by the server.
type Middlewares struct {
	Auth       func(http.Handler) http.Handler
	WriteLimit func(http.Handler) http.Handler
}

// Handler wires public HTTP endpoints to application services.
type Handler struct {
	logger              *zap.Logger
	cafeQueries         publicapp.CafeQueryService
	ratingQueries       publicapp.RatingQueryService
	ratingCommands      publicapp.RatingCommandService
	auth                publicapp.AuthService
	sessions            *publicapp.SessionRegistry
	helpfulCookieSecret []byte
	helpfulCookieSecure bool
	upgrader            websocket.Upgrader
	subscribers         SubscriberGauge
	now                 func() time.Time
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger              *zap.Logger
	CafeQueries         publicapp.CafeQueryService
	RatingQueries       publicapp.RatingQueryService
	RatingCommands      publicapp.RatingCommandService
	Auth                publicapp.AuthService
	Sessions            *publicapp.SessionRegistry
	HelpfulCookieSecret []byte
	HelpfulCookieSecure bool
	// CheckOrigin guards the auth event websocket. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
	Subscribers SubscriberGauge
	Now         func() time.Time
}

// NewHandler constructs a public HTTP handler set.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		logger:              cfg.Logger,
		cafeQueries:         cfg.CafeQueries,
		ratingQueries:       cfg.RatingQueries,
		ratingCommands:      cfg.RatingCommands,
		auth:                cfg.Auth,
		sessions:            cfg.Sessions,
		helpfulCookieSecret: cfg.HelpfulCookieSecret,
		helpfulCookieSecure: cfg.HelpfulCookieSecure,
		subscribers:         cfg.Subscribers,
		now:                 cfg.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.subscribers == nil {
		h.subscribers = nopGauge{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	return h
}

// Register mounts all public routes onto the router.
func (h *Handler) Register(r chi.Router, mw Middlewares) {
	auth := orPassthrough(mw.Auth)
	limit := orPassthrough(mw.WriteLimit)

	r.Get("/cafes", h.cafeListHandler())
	r.Get("/cafes/popular", h.cafePopularHandler())
	r.Get("/cafes/{id}", h.cafeDetailHandler())
	r.Get("/cafes/{id}/ratings", h.ratingListHandler())
	r.With(limit, auth).Post("/cafes/{id}/ratings", h.ratingCreateHandler())
	r.With(limit).Post("/ratings/{id}/helpful", h.ratingHelpfulToggleHandler())

	r.With(limit).Post("/auth/register", h.registerHandler())
	r.With(limit).Post("/auth/login", h.loginHandler())
	r.With(auth).Post("/auth/logout", h.logoutHandler())
	r.With(limit).Post("/auth/social/{provider}", h.socialLoginHandler())
	r.With(limit).Post("/auth/redirect-result", h.redirectResultHandler())
	r.With(auth).Get("/auth/verify", h.authVerifyHandler())
	r.With(auth).Get("/auth/me", h.currentUserHandler())
	r.Get("/auth/events", h.authEventsHandler())
}

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}

// session resolves the client session named by the X-Session-ID header.
func (h *Handler) session(r *http.Request) *publicapp.Session {
	if h.sessions == nil {
		return nil
	}
	return h.sessions.Get(r.Header.Get(sessionHeader))
}

const sessionHeader = "X-Session-ID"
