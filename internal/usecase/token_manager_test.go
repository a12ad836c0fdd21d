package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/integration/zoho"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Load(ctx context.Context) (*entity.TokenRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TokenRecord), args.Error(1)
}

func (m *MockTokenStore) Save(ctx context.Context, record *entity.TokenRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type MockTokenEndpoint struct {
	mock.Mock
}

func (m *MockTokenEndpoint) RefreshAccessToken(ctx context.Context, refreshToken string) (*zoho.TokenResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zoho.TokenResponse), args.Error(1)
}

func (m *MockTokenEndpoint) ExchangeCode(ctx context.Context, code string) (*zoho.TokenResponse, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*zoho.TokenResponse), args.Error(1)
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTokenManager(store *MockTokenStore, endpoint *MockTokenEndpoint) (*usecase.TokenManager, *fixedClock) {
	clock := &fixedClock{now: testNow}
	return usecase.NewTokenManager(store, endpoint, time.Minute, nil).WithClock(clock), clock
}

func expiredRecord() *entity.TokenRecord {
	return &entity.TokenRecord{
		AccessToken:  "1000.old-access",
		RefreshToken: "1000.refresh",
		APIDomain:    "https://www.zohoapis.in",
		ExpiresAt:    testNow.Add(-5 * time.Minute),
	}
}

func TestGetValidAccessTokenRefreshesExpiredToken(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	store.On("Load", mock.Anything).Return(expiredRecord(), nil).Once()
	endpoint.On("RefreshAccessToken", mock.Anything, "1000.refresh").
		Return(&zoho.TokenResponse{AccessToken: "1000.new-access", ExpiresIn: 3600}, nil).Once()
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec *entity.TokenRecord) bool {
		return rec.AccessToken == "1000.new-access" &&
			rec.RefreshToken == "1000.refresh" &&
			rec.ExpiresAt.Equal(testNow.Add(time.Hour))
	})).Return(nil).Once()

	token, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.new-access", token)

	// Served from memory now that it is fresh.
	token, err = manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.new-access", token)

	endpoint.AssertNumberOfCalls(t, "RefreshAccessToken", 1)
	store.AssertNumberOfCalls(t, "Load", 1)
	store.AssertExpectations(t)
}

func TestGetValidAccessTokenReturnsFreshTokenWithoutRefresh(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	rec := expiredRecord()
	rec.ExpiresAt = testNow.Add(30 * time.Minute)
	store.On("Load", mock.Anything).Return(rec, nil)

	token, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.old-access", token)
	endpoint.AssertNotCalled(t, "RefreshAccessToken", mock.Anything, mock.Anything)
}

func TestGetValidAccessTokenRefreshesInsideSafetyMargin(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	rec := expiredRecord()
	rec.ExpiresAt = testNow.Add(30 * time.Second)
	store.On("Load", mock.Anything).Return(rec, nil)
	endpoint.On("RefreshAccessToken", mock.Anything, "1000.refresh").
		Return(&zoho.TokenResponse{AccessToken: "1000.new-access", ExpiresIn: 3600}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	token, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000.new-access", token)
}

func TestGetValidAccessTokenRejectedRefreshLeavesStoreUntouched(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	store.On("Load", mock.Anything).Return(expiredRecord(), nil)
	endpoint.On("RefreshAccessToken", mock.Anything, "1000.refresh").
		Return(nil, &zoho.APIError{StatusCode: 200, Code: "invalid_code"})

	_, err := manager.GetValidAccessToken(context.Background())

	require.Error(t, err)
	assert.True(t, usecase.HasCode(err, usecase.CodeRefreshFailed))
	var techErr *usecase.TechnicalError
	require.True(t, errors.As(err, &techErr))
	assert.Equal(t, "invalid_code", techErr.VendorMessage)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	status := manager.Status(context.Background())
	assert.True(t, status.Initialized)
	assert.False(t, status.Valid)
	assert.Equal(t, "invalid_code", status.LastRefreshError)
}

func TestGetValidAccessTokenWithoutRecord(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	store.On("Load", mock.Anything).Return(nil, entity.ErrTokenNotFound)

	_, err := manager.GetValidAccessToken(context.Background())

	assert.True(t, usecase.HasCode(err, usecase.CodeTokenUnavailable))
	assert.True(t, usecase.IsTechnicalError(err))
	endpoint.AssertNotCalled(t, "RefreshAccessToken", mock.Anything, mock.Anything)

	assert.False(t, manager.Status(context.Background()).Initialized)
}

func TestRefreshStoresRotatedRefreshToken(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	store.On("Load", mock.Anything).Return(expiredRecord(), nil)
	endpoint.On("RefreshAccessToken", mock.Anything, "1000.refresh").
		Return(&zoho.TokenResponse{AccessToken: "a2", RefreshToken: "1000.rotated", ExpiresIn: 3600}, nil)
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec *entity.TokenRecord) bool {
		return rec.RefreshToken == "1000.rotated" && rec.APIDomain == "https://www.zohoapis.in"
	})).Return(nil)

	rec, err := manager.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "1000.rotated", rec.RefreshToken)
	assert.True(t, rec.ExpiresAt.After(testNow))
	store.AssertExpectations(t)
}

func TestRefreshPersistFailureIsNotHandedOut(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	store.On("Load", mock.Anything).Return(expiredRecord(), nil)
	endpoint.On("RefreshAccessToken", mock.Anything, mock.Anything).
		Return(&zoho.TokenResponse{AccessToken: "a2", ExpiresIn: 3600}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	token, err := manager.GetValidAccessToken(context.Background())

	assert.Empty(t, token)
	assert.True(t, usecase.HasCode(err, usecase.CodeRefreshFailed))
	assert.ErrorContains(t, err, "disk full")
}

func TestGetValidAccessTokenFallsBackToCacheWhenStoreIsDown(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, clock := newTokenManager(store, endpoint)

	store.On("Load", mock.Anything).Return(expiredRecord(), nil).Once()
	endpoint.On("RefreshAccessToken", mock.Anything, "1000.refresh").
		Return(&zoho.TokenResponse{AccessToken: "a2", ExpiresIn: 3600}, nil).Once()
	endpoint.On("RefreshAccessToken", mock.Anything, "1000.refresh").
		Return(&zoho.TokenResponse{AccessToken: "a3", ExpiresIn: 3600}, nil).Once()
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)

	clock.now = testNow.Add(2 * time.Hour)
	store.On("Load", mock.Anything).Return(nil, errors.New("connection refused"))

	token, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a3", token)
}

func TestInitializeStoresFirstRecord(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	endpoint.On("ExchangeCode", mock.Anything, "1000.code").
		Return(&zoho.TokenResponse{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 3600}, nil)
	store.On("Save", mock.Anything, mock.MatchedBy(func(rec *entity.TokenRecord) bool {
		return rec.AccessToken == "a1" && rec.RefreshToken == "r1"
	})).Return(nil)

	rec, err := manager.Initialize(context.Background(), "1000.code")

	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Hour), rec.ExpiresAt)

	token, err := manager.GetValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", token)
	store.AssertNotCalled(t, "Load", mock.Anything)
}

func TestInitializeRequiresRefreshToken(t *testing.T) {
	store := new(MockTokenStore)
	endpoint := new(MockTokenEndpoint)
	manager, _ := newTokenManager(store, endpoint)

	endpoint.On("ExchangeCode", mock.Anything, "1000.code").
		Return(&zoho.TokenResponse{AccessToken: "a1", ExpiresIn: 3600}, nil)

	_, err := manager.Initialize(context.Background(), "1000.code")

	assert.True(t, usecase.HasCode(err, usecase.CodeAuthorizationFailed))
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestInitializeRejectsEmptyCode(t *testing.T) {
	manager, _ := newTokenManager(new(MockTokenStore), new(MockTokenEndpoint))

	_, err := manager.Initialize(context.Background(), "")

	assert.True(t, usecase.IsDomainError(err))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "…abcd", usecase.MaskSecret("1000.xyzabcd"))
	assert.Equal(t, "****", usecase.MaskSecret("abc"))
}
