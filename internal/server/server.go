package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	adminapp "github.com/sngm3741/cafe-club/api/internal/admin/application"
	"github.com/sngm3741/cafe-club/api/internal/config"
	"github.com/sngm3741/cafe-club/api/internal/infrastructure/cache"
	"github.com/sngm3741/cafe-club/api/internal/infrastructure/identity"
	"github.com/sngm3741/cafe-club/api/internal/infrastructure/metrics"
	mongodoc "github.com/sngm3741/cafe-club/api/internal/infrastructure/mongo"
	"github.com/sngm3741/cafe-club/api/internal/infrastructure/storage"
	adminhttp "github.com/sngm3741/cafe-club/api/internal/interfaces/http/admin"
	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	publichttp "github.com/sngm3741/cafe-club/api/internal/interfaces/http/public"
	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// Server owns the HTTP listener and the background jobs, and is the
// composition root wiring repositories into services and handlers.
type Server struct {
	logger         *zap.Logger
	client         *mongo.Client
	redis          *redis.Client
	metrics        *metrics.Registry
	tokens         *identity.TokenService
	adminCafes     adminapp.CafeService
	limiter        *ipRateLimiter
	sweepers       []sweeper
	location       *time.Location
	addr           string
	allowedOrigins []string
	reconcileSpec  string

	router http.Handler
}

// sweeper drops expired entries from an in-memory store.
type sweeper interface {
	Sweep() int
}

// New builds every dependency from cfg. The Mongo client must already be
// connected; New creates indexes and, when configured, connects Redis and
// prepares the image bucket.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, client *mongo.Client) (*Server, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, falling back to UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.UTC
	}

	srv := &Server{
		logger:         logger,
		client:         client,
		metrics:        metrics.NewRegistry(),
		location:       loc,
		addr:           cfg.Addr,
		allowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		reconcileSpec:  cfg.ReconcileCron,
		limiter:        newIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Now),
	}

	db := client.Database(cfg.MongoDatabase)
	collections := mongodoc.Collections{
		Cafes:        cfg.CafeCollection,
		Ratings:      cfg.RatingCollection,
		Users:        cfg.UserCollection,
		Credentials:  cfg.CredentialCollection,
		HelpfulVotes: cfg.HelpfulVoteCollection,
	}
	if err := mongodoc.EnsureIndexes(ctx, db, collections); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	var (
		revocations identity.RevocationList
		pending     publicapp.PendingSignInStore
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		srv.redis = rdb
		revocations = cache.NewRedisRevocationList(rdb)
		pending = cache.NewRedisPendingSignInStore(rdb)
	} else {
		memRevocations := cache.NewMemoryRevocationList(time.Now)
		memPending := cache.NewMemoryPendingSignInStore(time.Now)
		srv.sweepers = append(srv.sweepers, memRevocations, memPending)
		revocations, pending = memRevocations, memPending
		logger.Info("REDIS_ADDR not set, keeping auth state in memory")
	}

	var (
		publicBlobs publicapp.BlobStore
		adminBlobs  adminapp.BlobStore
	)
	if cfg.S3.Bucket != "" {
		store, err := storage.NewS3BlobStore(storage.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			UseSSL:        cfg.S3.UseSSL,
			UsePathStyle:  cfg.S3.UsePathStyle,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		}, storage.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		publicBlobs, adminBlobs = store, store
	} else {
		logger.Info("S3_BUCKET not set, image uploads are disabled")
	}

	trusted := make([]identity.IssuerConfig, 0, len(cfg.JWTConfigs))
	for _, jc := range cfg.JWTConfigs {
		trusted = append(trusted, identity.IssuerConfig{Issuer: jc.Issuer, Secret: jc.Secret})
	}
	srv.tokens, err = identity.NewTokenService(identity.TokenServiceConfig{
		Own:      identity.IssuerConfig{Issuer: cfg.JWTIssuer, Secret: cfg.JWTSecret},
		Trusted:  trusted,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
		Revoked:  revocations,
	})
	if err != nil {
		return nil, err
	}

	providers := make(map[domain.Provider]identity.ProviderConfig, len(cfg.SocialProviders))
	authorizeURLs := make(map[domain.Provider]string, len(cfg.SocialProviders))
	for name, p := range cfg.SocialProviders {
		provider, err := domain.ParseProvider(name)
		if err != nil {
			return nil, err
		}
		providers[provider] = identity.ProviderConfig{Issuer: p.Issuer, Audience: p.Audience, Secret: p.Secret}
		if p.AuthorizeURL != "" {
			authorizeURLs[provider] = p.AuthorizeURL
		}
	}
	verifier := identity.NewSocialVerifier(providers, time.Now)
	flow, err := publicapp.ParseSocialFlow(cfg.SocialFlow)
	if err != nil {
		return nil, err
	}

	cafeRepo := mongodoc.NewCafeRepository(db, cfg.CafeCollection)
	ratingRepo := mongodoc.NewRatingRepository(client, db, cfg.RatingCollection, cfg.CafeCollection, cfg.HelpfulVoteCollection)
	userRepo := mongodoc.NewUserRepository(db, cfg.UserCollection)
	credentialRepo := mongodoc.NewCredentialRepository(db, cfg.CredentialCollection, cfg.BcryptCost)
	adminCafeRepo := mongodoc.NewAdminCafeRepository(db, cfg.CafeCollection)

	authService, err := publicapp.NewAuthService(publicapp.AuthServiceConfig{
		Users:         userRepo,
		Identities:    credentialRepo,
		Tokens:        srv.tokens,
		Verifier:      verifier,
		Pending:       pending,
		Flow:          flow,
		AuthorizeURLs: authorizeURLs,
		RedirectTTL:   cfg.RedirectTTL,
		Logger:        logger.Named("auth"),
	})
	if err != nil {
		return nil, err
	}

	srv.adminCafes = adminapp.NewCafeService(adminapp.CafeServiceConfig{
		Cafes:    adminCafeRepo,
		Ratings:  ratingRepo,
		Blobs:    adminBlobs,
		Recorder: srv.metrics,
		Logger:   logger.Named("admin"),
	})

	ratingCommands := publicapp.NewRatingCommandService(publicapp.RatingServiceConfig{
		Ratings:      ratingRepo,
		Cafes:        cafeRepo,
		Blobs:        publicBlobs,
		Recorder:     srv.metrics,
		Logger:       logger.Named("ratings"),
		AllowOrphans: cfg.RatingAllowOrphans,
	})

	sessions := publicapp.NewSessionRegistry(userRepo, logger.Named("session"))
	srv.sweepers = append(srv.sweepers, sessions)

	publicHandler := publichttp.NewHandler(publichttp.Config{
		Logger:              logger.Named("public"),
		CafeQueries:         publicapp.NewCafeQueryService(cafeRepo),
		RatingQueries:       publicapp.NewRatingQueryService(ratingRepo),
		RatingCommands:      ratingCommands,
		Auth:                authService,
		Sessions:            sessions,
		HelpfulCookieSecret: cfg.HelpfulCookieSecret,
		HelpfulCookieSecure: cfg.HelpfulCookieSecure,
		CheckOrigin:         checkOrigin(srv.allowedOrigins),
		Subscribers:         srv.metrics,
	})
	adminHandler := adminhttp.NewHandler(adminhttp.Config{
		Logger:      logger.Named("admin"),
		CafeService: srv.adminCafes,
	})

	srv.router = srv.routes(publicHandler, adminHandler)
	return srv, nil
}

func (s *Server) routes(publicHandler *publichttp.Handler, adminHandler *adminhttp.Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)
	router.Use(withCORS(s.allowedOrigins))
	router.Use(s.metrics.InstrumentHandler)

	router.Get("/healthz", s.healthHandler())
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	publicHandler.Register(router, publichttp.Middlewares{
		Auth:       s.authMiddleware,
		WriteLimit: s.limiter.Middleware,
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		adminHandler.Register(r)
	})
	return router
}

// Run starts the HTTP listener and the scheduled jobs, and blocks until the
// process is signalled or the listener fails.
func (s *Server) Run() error {
	scheduler, err := s.scheduleJobs()
	if err != nil {
		return err
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.addr))
		errChan <- httpServer.ListenAndServe()
	}()

	err = waitForShutdown(httpServer, errChan, s.logger)
	<-scheduler.Stop().Done()
	s.shutdown(context.Background())
	return err
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.ping(ctx); err != nil {
			common.WriteJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}

		common.WriteJSON(s.logger, w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().In(s.location).Format(time.RFC3339),
		})
	}
}

func (s *Server) ping(ctx context.Context) error {
	if s.client != nil {
		if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (s *Server) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if err := s.client.Disconnect(shutdownCtx); err != nil {
		s.logger.Warn("mongo disconnect failed", zap.Error(err))
	}
}

func waitForShutdown(httpServer *http.Server, errChan <-chan error, logger *zap.Logger) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown failed", zap.Error(err))
		}
	}
	return nil
}

// scheduleJobs registers the aggregate reconciliation and the expiry sweep
// over in-memory state. The returned scheduler is not started.
func (s *Server) scheduleJobs() (*cron.Cron, error) {
	scheduler := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(s.logger)))),
	)

	if s.reconcileSpec != "" && s.adminCafes != nil {
		if _, err := scheduler.AddFunc(s.reconcileSpec, s.reconcileAggregates); err != nil {
			return nil, fmt.Errorf("schedule aggregate reconciliation %q: %w", s.reconcileSpec, err)
		}
	}
	if _, err := scheduler.AddFunc("@every 1m", func() { s.sweep() }); err != nil {
		return nil, err
	}
	return scheduler, nil
}

func (s *Server) reconcileAggregates() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	started := time.Now()
	changed, err := s.adminCafes.ReconcileAll(ctx)
	if err != nil {
		s.logger.Error("aggregate reconciliation failed", zap.Error(err))
		return
	}
	s.logger.Info("aggregate reconciliation finished", zap.Int("changed", changed), zap.Duration("took", time.Since(started)))
}

func (s *Server) sweep() int {
	removed := 0
	for _, sw := range s.sweepers {
		removed += sw.Sweep()
	}
	if s.limiter != nil {
		removed += s.limiter.Sweep()
	}
	if removed > 0 {
		s.logger.Debug("expired entries swept", zap.Int("removed", removed))
	}
	return removed
}
