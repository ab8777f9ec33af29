package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/datadict/datadict/pkg/auth"
	"github.com/datadict/datadict/pkg/dictionary"
	"github.com/datadict/datadict/pkg/project"
)

// Server wires the stores, the version manager, and the HTTP layer together.
type Server struct {
	cfg       Config
	db        *gorm.DB
	documents dictionary.DocumentStore
	logger    *slog.Logger

	router    chi.Router
	http      *http.Server
	projects  *project.Store
	manager   *dictionary.Manager
	verifier  *auth.Verifier
	startedAt time.Time
}

// New creates a server over an opened relational database and document
// store. The caller owns both connections.
func New(cfg Config, db *gorm.DB, documents dictionary.DocumentStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		db:        db,
		documents: documents,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Init migrates the relational tables and builds the domain services.
func (s *Server) Init() error {
	s.projects = project.NewStore(s.db)
	if err := s.projects.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate project tables: %w", err)
	}

	versions := dictionary.NewVersionStore(s.db)
	if err := versions.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate version tables: %w", err)
	}

	s.manager = dictionary.NewManager(versions, s.documents, s.logger)

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret: s.cfg.JWTSecret,
		Issuer: s.cfg.JWTIssuer,
	})
	if err != nil {
		return fmt.Errorf("failed to build token verifier: %w", err)
	}
	s.verifier = verifier
	return nil
}

// Manager exposes the version manager, mainly for tests and the CLI glue.
func (s *Server) Manager() *dictionary.Manager { return s.manager }

// MountRoutes builds the HTTP router.
func (s *Server) MountRoutes() chi.Router {
	s.router = chi.NewRouter()

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", s.healthHandler)
	s.router.Get("/", s.rootHandler)

	projectHandlers := project.NewHandlers(s.projects, s.manager, s.logger, s.cfg.Debug)
	dictHandlers := dictionary.NewHandlers(s.manager, s.projects, s.logger, s.cfg.Debug)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(s.verifier, s.logger, s.cfg.Debug))
		projectHandlers.Routes(r)
		dictHandlers.Routes(r)
	})

	return s.router
}

// Router returns the mounted router.
func (s *Server) Router() chi.Router { return s.router }

// Start begins serving HTTP and blocks until the listener fails or is shut
// down.
func (s *Server) Start() error {
	if s.router == nil {
		s.MountRoutes()
	}
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening", "addr", s.cfg.ListenAddr, "debug", s.cfg.Debug)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	}
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.Ping() != nil {
		status["status"] = "degraded"
		status["database"] = "down"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"service": "datadict-api",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}
