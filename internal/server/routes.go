package server

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rankguard/internal/handlers"
	"rankguard/internal/handlers/api"
)

// Routes holds the handlers mounted by RegisterRoutes.
type Routes struct {
	Probe    *handlers.ProbeHandler
	Audits   *api.AuditHandler
	Rankings *api.RankingHandler
	Metrics  prometheus.Gatherer // nil disables /metrics
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(r Routes) {
	// Probes and metrics stay outside the rate limiter
	s.App.Get("/healthz", r.Probe.Liveness)
	s.App.Get("/readyz", r.Probe.Readiness)
	if r.Metrics != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.Metrics, promhttp.HandlerOpts{})))
	}

	apiGroup := s.App.Group("/api")
	if s.Cfg.RateLimit > 0 {
		apiGroup.Use(s.RateLimiter())
	}

	campaigns := apiGroup.Group("/campaigns/:id")
	campaigns.Post("/audits", r.Audits.Create)
	campaigns.Get("/audits", r.Audits.History)
	campaigns.Get("/cannibalization", r.Audits.Results)
	campaigns.Get("/keywords/:keywordId/ranking", r.Rankings.Keyword)
}
