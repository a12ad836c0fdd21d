package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/middleware"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

type tokenAdmin interface {
	Status(ctx context.Context) usecase.TokenStatus
	Refresh(ctx context.Context) (*entity.TokenRecord, error)
	Initialize(ctx context.Context, authorizationCode string) (*entity.TokenRecord, error)
}

// AdminHandler exposes the Zoho token lifecycle to operators.
type AdminHandler struct {
	tokens tokenAdmin
	logger *zap.Logger
}

func NewAdminHandler(tokens tokenAdmin, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{tokens: tokens, logger: logger.Named("admin_handler")}
}

type InitTokenRequest struct {
	Code string `json:"code"`
}

type TokenActionResponse struct {
	Success   bool       `json:"success"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// RequireAdmin rejects requests without "Authorization: Bearer <token>".
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, TokenActionResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Status handles GET /admin/zoho/status.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tokens.Status(r.Context()))
}

// Refresh handles POST /admin/zoho/refresh.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tokens.Refresh(r.Context())
	middleware.RecordTokenRefresh("manual", err)
	if err != nil {
		h.logger.Error("manual token refresh failed", zap.Error(err))
		writeJSON(w, adminStatus(err), TokenActionResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, TokenActionResponse{Success: true, ExpiresAt: &rec.ExpiresAt})
}

// Init handles POST /admin/zoho/init.
func (h *AdminHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req InitTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, TokenActionResponse{Error: "Invalid JSON"})
		return
	}

	rec, err := h.tokens.Initialize(r.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		h.logger.Error("zoho authorization failed", zap.Error(err))
		writeJSON(w, adminStatus(err), TokenActionResponse{Error: err.Error()})
		return
	}

	h.logger.Info("zoho authorized through admin endpoint", zap.Time("expires_at", rec.ExpiresAt))
	writeJSON(w, http.StatusOK, TokenActionResponse{Success: true, ExpiresAt: &rec.ExpiresAt})
}

func adminStatus(err error) int {
	switch usecase.ErrorCode(err) {
	case usecase.CodeInvalidAuthorizationCode:
		return http.StatusBadRequest
	case usecase.CodeAuthorizationFailed:
		return http.StatusBadGateway
	}
	status, _ := errorResponse(err)
	return status
}
