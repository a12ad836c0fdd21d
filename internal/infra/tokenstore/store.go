package tokenstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/zoho-lead-gateway/internal/config"
	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/database"
)

// Store is a token store that can also report its own health.
type Store interface {
	entity.TokenStore
	Ping(ctx context.Context) error
}

// New picks the backend named by cfg.TokenStore. db and rdb may be nil
// when the matching backend is not selected.
func New(cfg config.Config, db *sql.DB, rdb *redis.Client) (Store, error) {
	switch cfg.TokenStore {
	case config.TokenStoreFile, "":
		return NewFileStore(cfg.TokenFilePath), nil
	case config.TokenStorePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres token store needs a database connection")
		}
		return database.NewTokenRepository(db), nil
	case config.TokenStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis token store needs a redis client")
		}
		return NewRedisStore(rdb, cfg.RedisTokenKey), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Backends holds the connections opened for the configured store.
type Backends struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (b Backends) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Redis != nil {
		b.Redis.Close()
	}
}

// Open connects whatever DATABASE_URL and REDIS_URL point at, ensures the
// schema exists, and returns the configured store on top of them.
func Open(ctx context.Context, cfg config.Config) (Store, Backends, error) {
	var b Backends

	if cfg.DatabaseURL != "" {
		db, err := database.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, b, err
		}
		b.DB = db
		if err := database.EnsureSchema(ctx, db); err != nil {
			b.Close()
			return nil, Backends{}, err
		}
	}

	if cfg.RedisURL != "" {
		rdb, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, Backends{}, err
		}
		b.Redis = rdb
	}

	store, err := New(cfg, b.DB, b.Redis)
	if err != nil {
		b.Close()
		return nil, Backends{}, err
	}
	return store, b, nil
}
