package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/middleware"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

const maxLeadBodyBytes = 64 << 10

type leadSubmitter interface {
	Execute(ctx context.Context, payload entity.LeadPayload) (*entity.SubmitResult, error)
}

type formTypeCatalog interface {
	Key(formType string) (string, bool)
}

type LeadHandler struct {
	submitter   leadSubmitter
	formTypes   formTypeCatalog
	rateLimiter *RateLimiter
	logger      *zap.Logger
}

func NewLeadHandler(submitter leadSubmitter, formTypes formTypeCatalog, limiter *RateLimiter, logger *zap.Logger) *LeadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadHandler{
		submitter:   submitter,
		formTypes:   formTypes,
		rateLimiter: limiter,
		logger:      logger.Named("lead_handler"),
	}
}

type SubmitLeadRequest struct {
	FormData map[string]any `json:"formData"`
	FormType string         `json:"formType"`
}

type SubmitLeadResponse struct {
	Success bool   `json:"success"`
	LeadID  string `json:"leadId,omitempty"`
	Created *bool  `json:"created,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitLead handles POST /submit-lead.
func (h *LeadHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(getClientIP(r)) {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, SubmitLeadResponse{
			Error: "Too many requests. Please try again later.",
		})
		return
	}

	var req SubmitLeadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLeadBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, SubmitLeadResponse{Error: "Invalid JSON"})
		return
	}

	payload := toLeadPayload(req)
	metricLabel := "other"
	if h.formTypes != nil {
		if key, ok := h.formTypes.Key(payload.FormType); ok {
			metricLabel = key
		}
	}

	result, err := h.submitter.Execute(r.Context(), payload)
	if err != nil {
		middleware.RecordLeadSubmission(metricLabel, "error")
		status, msg := errorResponse(err)
		log := h.logger.Warn
		if status >= 500 {
			log = h.logger.Error
		}
		log("lead submission failed",
			zap.String("form_type", payload.FormType),
			zap.String("code", usecase.ErrorCode(err)),
			zap.Error(err),
		)
		writeJSON(w, status, SubmitLeadResponse{Error: msg})
		return
	}

	status, outcome := http.StatusOK, "updated"
	if result.Created {
		status, outcome = http.StatusCreated, "created"
	}
	middleware.RecordLeadSubmission(metricLabel, outcome)

	created := result.Created
	writeJSON(w, status, SubmitLeadResponse{
		Success: true,
		LeadID:  result.LeadID,
		Created: &created,
	})
}

// errorResponse maps the error taxonomy to a status and a caller-safe message.
func errorResponse(err error) (int, string) {
	switch usecase.ErrorCode(err) {
	case usecase.CodeInvalidPhone:
		return http.StatusBadRequest, err.Error()
	case usecase.CodeTokenUnavailable, usecase.CodeRefreshFailed:
		return http.StatusServiceUnavailable, "CRM is temporarily unavailable"
	case usecase.CodeCrmRequestFailed:
		return http.StatusBadGateway, "CRM rejected the request"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

var reservedFormKeys = map[string]bool{"name": true, "email": true, "phone": true, "message": true}

func toLeadPayload(req SubmitLeadRequest) entity.LeadPayload {
	payload := entity.LeadPayload{
		Name:     formString(req.FormData["name"]),
		Email:    formString(req.FormData["email"]),
		Phone:    formString(req.FormData["phone"]),
		Message:  formString(req.FormData["message"]),
		FormType: strings.TrimSpace(req.FormType),
	}

	for k, v := range req.FormData {
		if reservedFormKeys[k] || v == nil {
			continue
		}
		if s := formString(v); s != "" {
			if payload.Fields == nil {
				payload.Fields = make(map[string]string)
			}
			payload.Fields[k] = s
		}
	}
	return payload
}

// formString renders a decoded JSON value as form text.
func formString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
