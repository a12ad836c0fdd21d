package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/config"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/handlers"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/middleware"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/queue"
)

type routerDeps struct {
	cfg    config.Config
	logger *zap.Logger
	leads  *handlers.LeadHandler
	health *handlers.HealthHandler
	admin  *handlers.AdminHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if d.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(d.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Post("/submit-lead", d.leads.SubmitLead)
	r.Get("/health", d.health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	if d.cfg.AdminToken != "" {
		r.Route("/admin/zoho", func(r chi.Router) {
			r.Use(handlers.RequireAdmin(d.cfg.AdminToken))
			r.Get("/status", d.admin.Status)
			r.Post("/refresh", d.admin.Refresh)
			r.Post("/init", d.admin.Init)
		})
	}

	return r
}

func rabbitMQConn(mq *queue.RabbitMQ) *amqp.Connection {
	if mq == nil {
		return nil
	}
	return mq.Conn
}
