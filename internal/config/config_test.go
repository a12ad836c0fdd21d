package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	// Point at a file that does not exist so a developer's .env cannot leak in.
	t.Setenv("ENV_FILE_PATH", filepath.Join(t.TempDir(), "none.env"))
	t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "")
	for _, k := range []string{"PORT", "APP_ENV", "TOKEN_STORE", "DEFAULT_COUNTRY_CODE", "ZOHO_HTTP_TIMEOUT", "MAIL_HOST", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ZOHO_CLIENT_ID", "1000.client")
	t.Setenv("ZOHO_CLIENT_SECRET", "secret")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "91", cfg.DefaultCountryCode)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, 30*time.Second, cfg.ZohoHTTPTimeout)
	assert.Equal(t, 60*time.Second, cfg.TokenSafetyMargin)
	assert.Equal(t, 15*time.Minute, cfg.TokenRefreshLeadTime)
	assert.True(t, cfg.TokenRefreshEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.False(t, cfg.MailEnabled())
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "gateway.env")
	require.NoError(t, os.WriteFile(path, []byte("ZOHO_CLIENT_ID=from-file\nZOHO_CLIENT_SECRET=s\nTOKEN_STORE=Redis\nREDIS_URL=redis://localhost:6379/0\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\n"), 0o600))
	t.Setenv("ENV_FILE_PATH", path)
	for _, k := range []string{"ZOHO_CLIENT_ID", "ZOHO_CLIENT_SECRET", "TOKEN_STORE", "REDIS_URL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ZohoClientID)
	assert.Equal(t, TokenStoreRedis, cfg.TokenStore)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := Config{
		ZohoClientID:     "id",
		ZohoClientSecret: "secret",
		TokenStore:       TokenStoreFile,
		TokenFilePath:    "data/tokens.json",
		ZohoHTTPTimeout:  time.Second,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing client id", func(c *Config) { c.ZohoClientID = "" }},
		{"missing client secret", func(c *Config) { c.ZohoClientSecret = "" }},
		{"postgres without url", func(c *Config) { c.TokenStore = TokenStorePostgres }},
		{"redis without url", func(c *Config) { c.TokenStore = TokenStoreRedis }},
		{"unknown store", func(c *Config) { c.TokenStore = "s3" }},
		{"zero timeout", func(c *Config) { c.ZohoHTTPTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

type MockSecretFetcher struct {
	mock.Mock
}

func (m *MockSecretFetcher) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

func TestApplySecretKeepsExistingValues(t *testing.T) {
	t.Setenv("ZOHO_CLIENT_ID", "local")
	t.Setenv("ZOHO_CLIENT_SECRET", "")
	t.Setenv("MAIL_PORT", "")

	fetcher := new(MockSecretFetcher)
	fetcher.On("GetSecretValue", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return aws.ToString(in.SecretId) == "prod/lead-gateway"
	})).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"ZOHO_CLIENT_ID":"remote","ZOHO_CLIENT_SECRET":"s3cr3t","MAIL_PORT":465}`),
	}, nil)

	applied, err := applySecret(context.Background(), fetcher, "prod/lead-gateway", false)

	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, "local", os.Getenv("ZOHO_CLIENT_ID"))
	assert.Equal(t, "s3cr3t", os.Getenv("ZOHO_CLIENT_SECRET"))
	assert.Equal(t, "465", os.Getenv("MAIL_PORT"))
}

func TestApplySecretErrors(t *testing.T) {
	fetcher := new(MockSecretFetcher)
	fetcher.On("GetSecretValue", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()
	fetcher.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String("not json"),
	}, nil).Once()

	_, err := applySecret(context.Background(), fetcher, "x", false)
	assert.ErrorContains(t, err, "access denied")

	_, err = applySecret(context.Background(), fetcher, "x", false)
	assert.ErrorContains(t, err, "parsing secret")
}
