package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mubarokah/id-server/auth"
	"github.com/mubarokah/id-server/internal/config"
)

type Server struct {
	env            string // Environment (e.g., "DEV", "production")
	mux            *http.ServeMux
	routes         []string
	config         config.Config
	auth           *auth.AuthorizationService
	authenticator  Authenticator
	logger         zerolog.Logger
	metrics        *Metrics
	registry       *prometheus.Registry
	userLimiter    *RateLimiter
	detailsLimiter *RateLimiter
}

func New(cfg config.Config, authService *auth.AuthorizationService, authenticator Authenticator, logger zerolog.Logger) *Server {
	registry := prometheus.NewRegistry()

	s := &Server{
		env:            cfg.GetEnv(),
		mux:            http.NewServeMux(),
		config:         cfg,
		auth:           authService,
		authenticator:  authenticator,
		logger:         logger,
		metrics:        NewMetrics(registry),
		registry:       registry,
		userLimiter:    NewRateLimiter(cfg.GetUserRateLimit()),
		detailsLimiter: NewRateLimiter(cfg.GetUserDetailsRateLimit()),
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip route listing outside development
	}
	for _, route := range s.routes {
		s.logger.Debug().Str("route", route).Msg("registered")
	}
}
