package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
)

// TokenRepository stores the token record as the single row id = 1.
type TokenRepository struct {
	DB *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

func (r *TokenRepository) Load(ctx context.Context) (*entity.TokenRecord, error) {
	query := `
		SELECT access_token, refresh_token, api_domain, token_type, expires_at, updated_at
		FROM zoho_tokens
		WHERE id = 1
	`

	var rec entity.TokenRecord
	var apiDomain, tokenType sql.NullString
	err := r.DB.QueryRowContext(ctx, query).Scan(
		&rec.AccessToken,
		&rec.RefreshToken,
		&apiDomain,
		&tokenType,
		&rec.ExpiresAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading zoho token: %w", err)
	}

	rec.APIDomain = apiDomain.String
	rec.TokenType = tokenType.String
	return &rec, nil
}

func (r *TokenRepository) Save(ctx context.Context, rec *entity.TokenRecord) error {
	query := `
		INSERT INTO zoho_tokens (id, access_token, refresh_token, api_domain, token_type, expires_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			api_domain = EXCLUDED.api_domain,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.DB.ExecContext(ctx, query,
		rec.AccessToken,
		rec.RefreshToken,
		nullString(rec.APIDomain),
		nullString(rec.TokenType),
		rec.ExpiresAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving zoho token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
