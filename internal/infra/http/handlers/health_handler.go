package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type tokenStatusReader interface {
	Status(ctx context.Context) usecase.TokenStatus
}

type HealthHandler struct {
	DB         *sql.DB
	Redis      *redis.Client
	RabbitMQ   *amqp091.Connection
	TokenStore pinger
	Tokens     tokenStatusReader
	StartTime  time.Time
}

type HealthResponse struct {
	Status       string               `json:"status"`
	Version      string               `json:"version"`
	Uptime       string               `json:"uptime"`
	Dependencies map[string]string    `json:"dependencies"`
	Token        *usecase.TokenStatus `json:"zoho_token,omitempty"`
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client, rabbitMQ *amqp091.Connection, store pinger, tokens tokenStatusReader) *HealthHandler {
	return &HealthHandler{
		DB:         db,
		Redis:      rdb,
		RabbitMQ:   rabbitMQ,
		TokenStore: store,
		Tokens:     tokens,
		StartTime:  time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]string)

	if h.DB != nil {
		deps["database"] = healthOf(h.DB.PingContext(ctx))
	} else {
		deps["database"] = "not configured"
	}

	if h.Redis != nil {
		deps["redis"] = healthOf(h.Redis.Ping(ctx).Err())
	} else {
		deps["redis"] = "not configured"
	}

	if h.RabbitMQ != nil {
		if h.RabbitMQ.IsClosed() {
			deps["rabbitmq"] = "unhealthy: connection closed"
		} else {
			deps["rabbitmq"] = "healthy"
		}
	} else {
		deps["rabbitmq"] = "not configured"
	}

	if h.TokenStore != nil {
		deps["token_store"] = healthOf(h.TokenStore.Ping(ctx))
	}

	var token *usecase.TokenStatus
	if h.Tokens != nil {
		status := h.Tokens.Status(ctx)
		token = &status
		switch {
		case !status.Initialized:
			deps["zoho_token"] = "unhealthy: not initialized"
		case !status.Valid && status.LastRefreshError != "":
			deps["zoho_token"] = "unhealthy: refresh failed: " + status.LastRefreshError
		default:
			deps["zoho_token"] = "healthy"
		}
	}

	status := "healthy"
	for _, v := range deps {
		if v != "healthy" && v != "not configured" {
			status = "degraded"
			break
		}
	}

	code := http.StatusOK
	if status == "degraded" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:       status,
		Version:      "1.0.0",
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
		Token:        token,
	})
}

func healthOf(err error) string {
	if err != nil {
		return fmt.Sprintf("unhealthy: %v", err)
	}
	return "healthy"
}
