package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/xela07ax/spaceai-agent-portal/internal/engine"
	"github.com/xela07ax/spaceai-agent-portal/internal/infra/auth"
	"github.com/xela07ax/spaceai-agent-portal/internal/portal/handler"
	"go.uber.org/zap"
)

type Options struct {
	AllowedOrigins []string
	MetricsPath    string
	Metrics        http.Handler // при nil эндпоинт метрик не публикуется
}

type PortalServer struct {
	router *chi.Mux
	logger *zap.Logger
	opts   Options

	// nil включает dev-режим: email берется из заголовка X-Portal-Email
	authValidator auth.TokenValidator

	entitlements *handler.EntitlementsHandler // /v1/entitlements
	catalog      *handler.CatalogHandler      // /v1/catalog
}

func NewPortalServer(
	opts Options,
	logger *zap.Logger,
	validator auth.TokenValidator,
	entitlementsH *handler.EntitlementsHandler,
	catalogH *handler.CatalogHandler,
) *PortalServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PortalServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("portal-api"),
		opts:          opts,
		authValidator: validator,
		entitlements:  entitlementsH,
		catalog:       catalogH,
	}
	s.routes()
	return s
}

func (s *PortalServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", engine.TraceHeader, auth.DevEmailHeader},
		ExposedHeaders:   []string{engine.TraceHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- 2. Публичные роуты ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.opts.Metrics != nil {
		path := s.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, s.opts.Metrics)
	}
	r.Get("/v1/catalog", s.catalog.List)

	// --- 3. Identity необязательна: анонимный вызывающий получает Idle ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.Route("/v1/entitlements", func(r chi.Router) {
			r.With(middleware.Logger).Get("/", s.entitlements.Get)
			r.Get("/stream", s.entitlements.Stream)
			r.With(middleware.Logger).Post("/reload", s.entitlements.Reload)
		})
	})
}

func (s *PortalServer) allowedOrigins() []string {
	if len(s.opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.opts.AllowedOrigins
}

// ServeHTTP позволяет использовать PortalServer как стандартный http.Handler
func (s *PortalServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
