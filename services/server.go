package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/repository"
	ws "github.com/krshsl/staffline/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Server holds all server dependencies
type Server struct {
	config   *Config
	repo     *repository.GORMRepository
	pool     *pgxpool.Pool
	hub      *ws.Hub
	registry *integrations.Registry
	checker  *HealthChecker

	authService *AuthService
	routes      []interface{ RegisterRoutes(chi.Router) }
	public      []interface{ RegisterRoutes(chi.Router) }
	auth        *AuthEndpoints
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{config: config}
}

// SetDatabase sets the database connections. pool is only used for the
// health ping and may be nil.
func (s *Server) SetDatabase(repo *repository.GORMRepository, pool *pgxpool.Pool) {
	s.repo = repo
	s.pool = pool
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.repo == nil {
		return errors.New("database is not configured")
	}
	if s.config.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	s.hub = ws.NewHub()
	s.registry = integrations.NewRegistry(integrations.ClientOptions{
		Timeout:        s.config.Integrations.HTTPTimeout,
		MaxRetries:     s.config.Integrations.MaxRetries,
		CacheResponses: s.config.Integrations.CacheResponses,
	})
	s.checker = NewHealthChecker(s.repo, s.registry, s.config.Integrations.HealthInterval)

	matcher := NewMatchService(s.config.AI.GeminiAPIKey, s.config.AI.GeminiModel)
	if matcher.Enabled() {
		slog.Info("AI match scoring enabled", "model", s.config.AI.GeminiModel)
	} else {
		slog.Info("AI match scoring disabled, using skill overlap")
	}

	s.authService = NewAuthService(s.repo, s.config.JWT.Secret, s.config.IsProduction())
	s.auth = NewAuthEndpoints(s.authService)
	s.routes = []interface{ RegisterRoutes(chi.Router) }{
		NewATSEndpoints(s.repo, s.hub, s.registry, matcher),
		NewPodEndpoints(s.repo),
		NewSprintEndpoints(s.repo, s.hub),
		NewAcademyEndpoints(s.repo),
		NewPayrollEndpoints(s.repo, s.registry),
		NewIntegrationEndpoints(s.repo, s.registry, s.checker),
		NewRealtimeEndpoints(s.hub, s.config.Server.AllowedOrigins),
	}
	s.public = []interface{ RegisterRoutes(chi.Router) }{
		NewWebhookEndpoints(s.repo),
		NewSCIMEndpoints(s.repo),
	}
	slog.Info("Services initialized", "providers", s.registry.Providers())
	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.Server.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	// Partner callbacks authenticate with their own secrets.
	for _, e := range s.public {
		e.RegisterRoutes(r)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)
		s.auth.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			for _, e := range s.routes {
				e.RegisterRoutes(r)
			}
		})
	})

	return r
}

// Start serves until SIGINT or SIGTERM, then drains connections and stops
// the background workers.
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.hub.Run(ctx)
	go s.checker.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", port, "version", Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var err error
	switch {
	case s.pool != nil:
		err = s.pool.Ping(ctx)
		dbStatus = "up"
	case s.repo != nil:
		err = s.repo.Ping(ctx)
		dbStatus = "up"
	}
	if err != nil {
		dbStatus = "down"
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status, "database": dbStatus})
	slog.Debug("Health check", "status", status, "database", dbStatus)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API v1", "version": Version})
}
