package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/integration/zoho"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

type tokenManager interface {
	Current(ctx context.Context) (*entity.TokenRecord, error)
	Refresh(ctx context.Context) (*entity.TokenRecord, error)
}

// RefreshAlerter is told once per refresh token that can no longer be used.
type RefreshAlerter interface {
	SendRefreshFailureAlert(ctx context.Context, reason string) error
}

// TokenRefreshWorker refreshes the Zoho access token ahead of expiry so the
// request path rarely pays for a refresh.
type TokenRefreshWorker struct {
	tokens       tokenManager
	alerter      RefreshAlerter
	logger       *zap.Logger
	tickInterval time.Duration
	leadTime     time.Duration
	now          func() time.Time
	onRefresh    func(trigger string, err error)

	// refresh token the vendor last rejected; cleared once the stored one changes
	rejected string
}

func NewTokenRefreshWorker(tokens tokenManager, alerter RefreshAlerter, interval, leadTime time.Duration, logger *zap.Logger, onRefresh func(trigger string, err error)) *TokenRefreshWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if onRefresh == nil {
		onRefresh = func(string, error) {}
	}
	return &TokenRefreshWorker{
		tokens:       tokens,
		alerter:      alerter,
		logger:       logger.Named("token_refresh_worker"),
		tickInterval: interval,
		leadTime:     leadTime,
		now:          func() time.Time { return time.Now().UTC() },
		onRefresh:    onRefresh,
	}
}

func (w *TokenRefreshWorker) Start(ctx context.Context) {
	w.logger.Info("token refresh worker started",
		zap.Duration("interval", w.tickInterval),
		zap.Duration("lead_time", w.leadTime),
	)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("token refresh worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *TokenRefreshWorker) tick(ctx context.Context) {
	rec, err := w.tokens.Current(ctx)
	if err != nil {
		if errors.Is(err, entity.ErrTokenNotFound) {
			return
		}
		w.logger.Warn("could not read zoho token", zap.Error(err))
		return
	}

	if w.rejected != "" {
		if rec.RefreshToken == w.rejected {
			return
		}
		w.logger.Info("refresh token replaced, resuming proactive refresh")
		w.rejected = ""
	}

	if !rec.ExpiresWithin(w.now(), w.leadTime) {
		return
	}

	_, err = w.tokens.Refresh(ctx)
	w.onRefresh("scheduled", err)
	if err == nil {
		return
	}

	// Only a non-retryable answer from Zoho means the refresh token is dead.
	// Timeouts, 5xx, throttling and store failures are retried on the next tick.
	var apiErr *zoho.APIError
	if !usecase.HasCode(err, usecase.CodeRefreshFailed) || !errors.As(err, &apiErr) || apiErr.Retryable() {
		w.logger.Warn("proactive token refresh failed, will retry", zap.Error(err))
		return
	}

	w.logger.Error("zoho rejected the refresh token, waiting for re-authorization", zap.Error(err))
	w.rejected = rec.RefreshToken

	if w.alerter == nil {
		return
	}
	if err := w.alerter.SendRefreshFailureAlert(ctx, apiErr.VendorMessage()); err != nil {
		w.logger.Error("refresh failure alert not sent", zap.Error(err))
	}
}
