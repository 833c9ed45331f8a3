// Package server assembles the portal from configuration and runs it.
//
// DEPENDENCY INJECTION FLOW:
// cmd/server loads config.Config and calls New, which builds:
//
//	sqlite.DB ─────────────┐ (credentials)
//	Redis or memory ───────┼─→ identity.Service ─→ session.Manager ─→ guard.Guard
//	auth.Registry ─────────┘                              │
//	sqlite / mongo / memory ─→ repository.Documents ──────┴─→ services ─→ handlers
//	S3 or local dir ─→ blob.Store ─→ DonationService
//
// With Redis configured, replicas also share identity changes over a Redis
// channel, so a sign-out on one replica reaches the others.
//
// This is the composition root: nothing below this package reads config or
// decides which backend to use.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/blob"
	"github.com/sakif/ngo-hub/internal/config"
	"github.com/sakif/ngo-hub/internal/guard"
	"github.com/sakif/ngo-hub/internal/handler"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/repository"
	mongoRepo "github.com/sakif/ngo-hub/internal/repository/mongo"
	sqliteRepo "github.com/sakif/ngo-hub/internal/repository/sqlite"
	"github.com/sakif/ngo-hub/internal/service"
	"github.com/sakif/ngo-hub/internal/session"
	"github.com/sakif/ngo-hub/internal/store"
	"github.com/sakif/ngo-hub/internal/validate"
)

// evictEvery is how often idle application instances are dropped.
const evictEvery = 10 * time.Minute

// Server owns the HTTP server and every long-lived resource behind it.
//
// RESOURCE MANAGEMENT:
// Start closes everything on the way out, in reverse order of creation:
// the session manager first (it unsubscribes from the provider and drops
// in-flight role fetches), then the stores.
type Server struct {
	handler  http.Handler
	config   *config.Config
	logger   *slog.Logger
	sessions *session.Manager
	closers  []func(context.Context) error
}

// New builds the portal described by cfg. On error every resource opened so
// far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.close(context.Background())
		}
	}()

	// === CREDENTIALS (always SQLite) ===
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.onClose(func(context.Context) error { return db.Close() })
	checks := map[string]handler.Pinger{"database": db}

	// === RECORD STORE ===
	var records store.RecordStore
	switch cfg.RecordStore {
	case config.StoreMongo:
		m, err := mongoRepo.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		s.onClose(m.Close)
		records, checks["records"] = m, m
	case config.StoreMemory:
		logger.Warn("RECORD_STORE=memory: projects, donations and roles are lost on restart")
		records = store.NewMemory()
	default:
		records = db
	}
	docs := repository.NewDocuments(records)

	// === INSTANCE BINDINGS ===
	var (
		bindings identity.BindingStore = identity.NewMemoryBindings()
		feed     identity.ChangeFeed
	)
	if cfg.RedisAddr != "" {
		client, err := identity.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPass)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.onClose(func(context.Context) error { return client.Close() })
		bindings = identity.NewRedisBindings(client, cfg.BindingTTL)
		feed = identity.NewRedisFeed(client)
	}

	// === FEDERATED PROVIDERS ===
	var providers []auth.FederatedProvider
	if cfg.GitHubEnabled() {
		providers = append(providers, auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL))
	}
	if cfg.GoogleEnabled() {
		google, err := auth.NewGoogleProvider(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
		if err != nil {
			// Discovery needs the network; the portal still works without Google.
			logger.Warn("Google sign-in unavailable", slog.String("error", err.Error()))
		} else {
			providers = append(providers, google)
		}
	}
	registry := auth.NewRegistry(providers...)

	// === IDENTITY AND SESSIONS ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, 0)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	idp := identity.NewService(db, bindings, auth.NewPasswordService(), registry, logger)
	if feed != nil {
		stop, err := idp.UseFeed(ctx, feed)
		if err != nil {
			return nil, fmt.Errorf("subscribing to identity changes: %w", err)
		}
		s.onClose(func(context.Context) error { return stop() })
	}

	s.sessions = session.NewManager(idp, docs, logger,
		session.WithRoleFetchTimeout(cfg.RoleFetchTimeout),
		session.WithRevalidateAfter(cfg.SessionRevalidate),
	)
	s.sessions.Watch(func(instance string, sess session.Session) {
		logger.Debug("session changed",
			slog.String("instance", instance),
			slog.String("status", string(sess.Status)),
			slog.String("role", string(sess.Role)),
		)
	})

	// === UPLOADS ===
	var blobs blob.Store
	if cfg.S3Enabled() {
		if blobs, err = blob.NewS3Store(ctx, blob.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}); err != nil {
			return nil, fmt.Errorf("creating S3 store: %w", err)
		}
	} else if blobs, err = blob.NewLocalStore(cfg.UploadDir); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	// === SERVICES AND HANDLERS ===
	validator := validate.New()
	authSvc := service.NewAuthService(idp, docs, registry, s.sessions, validator, logger)
	projectSvc := service.NewProjectService(docs, validator, logger)
	volunteerSvc := service.NewVolunteerService(docs, docs, validator, logger)
	donationSvc := service.NewDonationService(docs, docs, blobs, cfg.SiteName, logger)
	dashboardSvc := service.NewDashboardService(docs, docs, docs)

	pages, err := handler.NewPages(s.sessions, cfg.SiteName, logger)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	cookies := auth.CookieOptions{Secure: cfg.CookieSecure}

	s.handler = NewRouter(Handlers{
		Tokens:     tokens,
		Cookies:    cookies,
		Guard:      guard.New(s.sessions, cfg.GuardWait, logger),
		Pages:      pages,
		Auth:       handler.NewAuthHandler(authSvc, pages, cookies, logger),
		Session:    handler.NewSessionHandler(s.sessions),
		Projects:   handler.NewProjectHandler(projectSvc, pages, logger),
		Volunteers: handler.NewVolunteerHandler(volunteerSvc, projectSvc, pages, logger),
		Donations:  handler.NewDonationHandler(donationSvc, projectSvc, pages, logger),
		Dashboard:  handler.NewDashboardHandler(dashboardSvc, pages, logger),
		Admin:      handler.NewAdminHandler(projectSvc, volunteerSvc, pages, logger),
		Health:     handler.NewHealthHandler(checks, logger),
	}, logger)

	logger.Info("portal assembled",
		slog.String("recordStore", cfg.RecordStore),
		slog.Bool("redisBindings", cfg.RedisAddr != ""),
		slog.Bool("s3Uploads", cfg.S3Enabled()),
		slog.Any("federated", registry.Names()),
	)
	return s, nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the session manager and the stores
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // certificate downloads and uploads
		IdleTimeout:  60 * time.Second,
	}

	stopEvict := s.evictIdle()
	defer stopEvict()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.close(ctx)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// evictIdle periodically drops application instances idle for longer than
// SESSION_IDLE. The returned func stops it.
func (s *Server) evictIdle() func() {
	ticker := time.NewTicker(evictEvery)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := s.sessions.Evict(s.config.SessionIdle); n > 0 {
					s.logger.Debug("evicted idle instances", slog.Int("count", n))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}

func (s *Server) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (s *Server) close(ctx context.Context) {
	if s.sessions != nil {
		s.sessions.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Warn("closing resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
