package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/config"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/handlers"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

// postFrom sends a malformed body so the handler answers before touching a submitter.
func postFrom(h http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/submit-lead", strings.NewReader(`{`))
	req.RemoteAddr = "203.0.113.9:52311"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func testRouter(trustProxy bool) http.Handler {
	logger := zap.NewNop()
	return newRouter(routerDeps{
		cfg:    config.Config{TrustProxyHeaders: trustProxy, CORSAllowedOrigins: []string{"*"}},
		logger: logger,
		leads:  handlers.NewLeadHandler(nil, usecase.DefaultLeadSources(), handlers.NewRateLimiter(1, time.Hour, 1), logger),
	})
}

func TestRouterIgnoresForwardedForByDefault(t *testing.T) {
	r := testRouter(false)

	assert.Equal(t, http.StatusBadRequest, postFrom(r, "192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "192.0.2.2"))
}

func TestRouterHonoursForwardedForBehindTrustedProxy(t *testing.T) {
	r := testRouter(true)

	assert.Equal(t, http.StatusBadRequest, postFrom(r, "192.0.2.1"))
	assert.Equal(t, http.StatusBadRequest, postFrom(r, "192.0.2.2"))
	assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "192.0.2.1"))
}
