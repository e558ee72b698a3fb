// Package api exposes the prediction core over HTTP. Every route except
// /health runs behind token authentication, tenant scoping, and a per-tenant
// rate limit.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/config"
	"github.com/civant/procure-intel/internal/predict"
	"github.com/civant/procure-intel/internal/reconcile"
	"github.com/civant/procure-intel/internal/store"
)

// Server wires the prediction core to HTTP handlers.
type Server struct {
	store    store.Store
	engine   *predict.Engine
	queue    *reconcile.Queue
	cfg      config.APIConfig
	limiters *limiterRegistry
	log      *zap.Logger
}

func NewServer(s store.Store, engine *predict.Engine, queue *reconcile.Queue, cfg config.APIConfig) *Server {
	return &Server{
		store:    s,
		engine:   engine,
		queue:    queue,
		cfg:      cfg,
		limiters: newLimiterRegistry(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		log:      zap.L().Named("api"),
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if timeout := s.cfg.RequestTimeoutMS; timeout > 0 {
		r.Use(middleware.Timeout(time.Duration(timeout) * time.Millisecond))
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)

		r.Get("/predictions", s.handleListPredictions)
		r.Get("/predictions/{predictionID}", s.handleGetPrediction)
		r.Get("/predictions/{predictionID}/history", s.handlePredictionHistory)
		r.Get("/predictions/{predictionID}/log", s.handlePredictionLog)
		r.Post("/predictions/{predictionID}/withdraw", s.handleWithdraw)

		r.Post("/notices", s.handleIngestNotice)

		r.Get("/candidates", s.handleListCandidates)
		r.Post("/candidates/{candidateID}/resolve", s.handleResolveCandidate)
	})

	return r
}
