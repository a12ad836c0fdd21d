package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TokenStoreFile     = "file"
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	LogLevel    string
	Port        string

	ZohoClientID     string
	ZohoClientSecret string
	ZohoRedirectURI  string
	ZohoAccountsURL  string
	ZohoAPIBaseURL   string
	ZohoHTTPTimeout  time.Duration

	DefaultCountryCode string
	LeadSourcesFile    string

	TokenSafetyMargin    time.Duration
	TokenRefreshLeadTime time.Duration
	TokenRefreshInterval time.Duration
	TokenRefreshEnabled  bool

	TokenStore    string
	TokenFilePath string
	DatabaseURL   string
	RedisURL      string
	RedisTokenKey string

	RabbitMQURL string

	MailHost     string
	MailPort     int
	MailUser     string
	MailPassword string
	MailFrom     string
	AlertEmailTo string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	CORSAllowedOrigins []string
	AdminToken         string
}

// Load pulls secrets and .env files into the environment, then reads it.
func Load() (Config, error) {
	LoadEnv(".env")

	cfg := Config{
		Environment: getEnv("APP_ENV", "production"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnv("PORT", "8080"),

		ZohoClientID:     strings.TrimSpace(os.Getenv("ZOHO_CLIENT_ID")),
		ZohoClientSecret: strings.TrimSpace(os.Getenv("ZOHO_CLIENT_SECRET")),
		ZohoRedirectURI:  os.Getenv("ZOHO_REDIRECT_URI"),
		ZohoAccountsURL:  getEnv("ZOHO_ACCOUNTS_URL", "https://accounts.zoho.in"),
		ZohoAPIBaseURL:   getEnv("ZOHO_API_BASE_URL", "https://www.zohoapis.in"),
		ZohoHTTPTimeout:  getDuration("ZOHO_HTTP_TIMEOUT", 30*time.Second),

		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),
		LeadSourcesFile:    os.Getenv("LEAD_SOURCES_FILE"),

		TokenSafetyMargin:    getDuration("TOKEN_SAFETY_MARGIN", 60*time.Second),
		TokenRefreshLeadTime: getDuration("TOKEN_REFRESH_LEAD_TIME", 15*time.Minute),
		TokenRefreshInterval: getDuration("TOKEN_REFRESH_INTERVAL", time.Minute),
		TokenRefreshEnabled:  getBool("TOKEN_REFRESH_ENABLED", true),

		TokenStore:    strings.ToLower(getEnv("TOKEN_STORE", TokenStoreFile)),
		TokenFilePath: getEnv("TOKEN_FILE_PATH", "data/zoho_tokens.json"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		RedisTokenKey: getEnv("REDIS_TOKEN_KEY", "zoho:token"),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		MailHost:     os.Getenv("MAIL_HOST"),
		MailPort:     getInt("MAIL_PORT", 587),
		MailUser:     os.Getenv("MAIL_USER"),
		MailPassword: os.Getenv("MAIL_PASS"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),
		AlertEmailTo: os.Getenv("ALERT_EMAIL_TO"),

		RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitBurst:    getInt("RATE_LIMIT_BURST", 5),
		TrustProxyHeaders: getBool("TRUST_PROXY_HEADERS", false),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ZohoClientID == "" {
		return fmt.Errorf("ZOHO_CLIENT_ID is required")
	}
	if c.ZohoClientSecret == "" {
		return fmt.Errorf("ZOHO_CLIENT_SECRET is required")
	}

	switch c.TokenStore {
	case TokenStoreFile:
		if c.TokenFilePath == "" {
			return fmt.Errorf("TOKEN_FILE_PATH is required for the file token store")
		}
	case TokenStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres token store")
		}
	case TokenStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis token store")
		}
	default:
		return fmt.Errorf("TOKEN_STORE must be one of file, postgres, redis (got %q)", c.TokenStore)
	}

	if c.ZohoHTTPTimeout <= 0 {
		return fmt.Errorf("ZOHO_HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c Config) MailEnabled() bool {
	return c.MailHost != "" && c.AlertEmailTo != ""
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
