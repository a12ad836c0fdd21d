package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/middleware"
)

const DefaultSafetyMargin = 60 * time.Second

// TokenManager owns the single Zoho token record. The mutex guards the
// cached pointer only: concurrent callers that find the token expired may
// each refresh, and the last response persisted wins.
type TokenManager struct {
	store        entity.TokenStore
	endpoint     TokenEndpoint
	clock        Clock
	logger       *zap.Logger
	safetyMargin time.Duration

	mu             sync.Mutex
	current        *entity.TokenRecord
	lastRefreshAt  time.Time
	lastRefreshErr string
}

type TokenStatus struct {
	Initialized      bool       `json:"initialized"`
	Valid            bool       `json:"valid"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ExpiresIn        string     `json:"expires_in,omitempty"`
	AccessTokenHint  string     `json:"access_token_hint,omitempty"`
	LastRefreshAt    *time.Time `json:"last_refresh_at,omitempty"`
	LastRefreshError string     `json:"last_refresh_error,omitempty"`
}

func NewTokenManager(store entity.TokenStore, endpoint TokenEndpoint, safetyMargin time.Duration, logger *zap.Logger) *TokenManager {
	if safetyMargin <= 0 {
		safetyMargin = DefaultSafetyMargin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{
		store:        store,
		endpoint:     endpoint,
		clock:        systemClock{},
		logger:       logger.Named("token_manager"),
		safetyMargin: safetyMargin,
	}
}

func (m *TokenManager) WithClock(clock Clock) *TokenManager {
	m.clock = clock
	return m
}

// GetValidAccessToken returns a token usable for at least the safety
// margin, refreshing synchronously when the cached one is too old.
func (m *TokenManager) GetValidAccessToken(ctx context.Context) (string, error) {
	now := m.clock.Now()

	if cached := m.cached(); cached.IsValidAt(now, m.safetyMargin) {
		return cached.AccessToken, nil
	}

	// Another process (or the bootstrap command) may have written a newer
	// record since we cached ours.
	rec, err := m.latest(ctx)
	if err != nil {
		return "", err
	}
	if rec.IsValidAt(now, m.safetyMargin) {
		return rec.AccessToken, nil
	}

	refreshed, err := m.refreshFrom(ctx, rec)
	middleware.RecordTokenRefresh("on_demand", err)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Refresh mints a new access token from the stored refresh token whatever
// the current expiry. It never retries.
func (m *TokenManager) Refresh(ctx context.Context) (*entity.TokenRecord, error) {
	rec, err := m.latest(ctx)
	if err != nil {
		return nil, err
	}
	return m.refreshFrom(ctx, rec)
}

// Initialize exchanges a one-time authorization code for the first record.
func (m *TokenManager) Initialize(ctx context.Context, authorizationCode string) (*entity.TokenRecord, error) {
	if authorizationCode == "" {
		return nil, &DomainError{Code: CodeInvalidAuthorizationCode, Message: "authorization code is required"}
	}

	resp, err := m.endpoint.ExchangeCode(ctx, authorizationCode)
	if err != nil {
		return nil, &TechnicalError{
			Code:          CodeAuthorizationFailed,
			Message:       "zoho rejected the authorization code",
			VendorMessage: vendorMessage(err),
			Err:           err,
		}
	}
	if resp.RefreshToken == "" {
		return nil, &TechnicalError{
			Code:    CodeAuthorizationFailed,
			Message: "zoho returned no refresh token, generate the code with access_type=offline",
		}
	}

	now := m.clock.Now()
	rec := &entity.TokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		APIDomain:    resp.APIDomain,
		TokenType:    resp.TokenType,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		UpdatedAt:    now,
	}

	if err := m.store.Save(ctx, rec); err != nil {
		return nil, errTokenPersistFailed(err)
	}
	m.remember(rec, now)

	m.logger.Info("zoho authorized", zap.Time("expires_at", rec.ExpiresAt), zap.String("access_token", MaskSecret(rec.AccessToken)))
	return copyRecord(rec), nil
}

// Current returns the latest known record, preferring the store.
func (m *TokenManager) Current(ctx context.Context) (*entity.TokenRecord, error) {
	rec, err := m.latest(ctx)
	if err != nil {
		return nil, err
	}
	return copyRecord(rec), nil
}

func (m *TokenManager) Status(ctx context.Context) TokenStatus {
	var status TokenStatus

	m.mu.Lock()
	if !m.lastRefreshAt.IsZero() {
		at := m.lastRefreshAt
		status.LastRefreshAt = &at
	}
	status.LastRefreshError = m.lastRefreshErr
	m.mu.Unlock()

	rec, err := m.latest(ctx)
	if err != nil {
		return status
	}

	now := m.clock.Now()
	expiresAt := rec.ExpiresAt
	status.Initialized = true
	status.Valid = rec.IsValidAt(now, m.safetyMargin)
	status.ExpiresAt = &expiresAt
	status.AccessTokenHint = MaskSecret(rec.AccessToken)
	if remaining := rec.ExpiresAt.Sub(now); remaining > 0 {
		status.ExpiresIn = remaining.Round(time.Second).String()
	}
	return status
}

func (m *TokenManager) refreshFrom(ctx context.Context, rec *entity.TokenRecord) (*entity.TokenRecord, error) {
	resp, err := m.endpoint.RefreshAccessToken(ctx, rec.RefreshToken)
	if err != nil {
		msg := vendorMessage(err)
		m.noteFailure(msg)
		m.logger.Error("zoho token refresh failed", zap.String("vendor_message", msg), zap.Error(err))
		return nil, ErrRefreshFailed(msg, err)
	}

	now := m.clock.Now()
	next := &entity.TokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: rec.RefreshToken,
		APIDomain:    rec.APIDomain,
		TokenType:    rec.TokenType,
		ExpiresAt:    now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		UpdatedAt:    now,
	}
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}
	if resp.APIDomain != "" {
		next.APIDomain = resp.APIDomain
	}
	if resp.TokenType != "" {
		next.TokenType = resp.TokenType
	}

	if err := m.store.Save(ctx, next); err != nil {
		m.noteFailure(err.Error())
		m.logger.Error("refreshed zoho token could not be persisted", zap.Error(err))
		return nil, errTokenPersistFailed(err)
	}
	m.remember(next, now)

	m.logger.Info("zoho token refreshed",
		zap.Time("expires_at", next.ExpiresAt),
		zap.Bool("refresh_token_rotated", resp.RefreshToken != ""),
	)
	return copyRecord(next), nil
}

// latest reads the store and falls back to the cache when the store is
// unreachable.
func (m *TokenManager) latest(ctx context.Context) (*entity.TokenRecord, error) {
	rec, err := m.store.Load(ctx)
	if err == nil {
		m.mu.Lock()
		m.current = rec
		m.mu.Unlock()
		return copyRecord(rec), nil
	}

	if errors.Is(err, entity.ErrTokenNotFound) {
		return nil, ErrTokenUnavailable()
	}

	if cached := m.cached(); cached != nil {
		m.logger.Warn("token store unreadable, using cached record", zap.Error(err))
		return cached, nil
	}
	return nil, &TechnicalError{
		Code:    CodeTokenUnavailable,
		Message: "zoho token store is unreadable",
		Err:     err,
	}
}

func (m *TokenManager) cached() *entity.TokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecord(m.current)
}

func (m *TokenManager) remember(rec *entity.TokenRecord, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = copyRecord(rec)
	m.lastRefreshAt = at
	m.lastRefreshErr = ""
}

func (m *TokenManager) noteFailure(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRefreshErr = msg
}

func copyRecord(rec *entity.TokenRecord) *entity.TokenRecord {
	if rec == nil {
		return nil
	}
	c := *rec
	return &c
}

func vendorMessage(err error) string {
	var vm vendorMessager
	if errors.As(err, &vm) {
		return vm.VendorMessage()
	}
	return err.Error()
}

// MaskSecret keeps the last four characters, enough to tell tokens apart in logs.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "…" + s[len(s)-4:]
}
