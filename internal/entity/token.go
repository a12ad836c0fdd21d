package entity

import (
	"context"
	"errors"
	"time"
)

var ErrTokenNotFound = errors.New("zoho token record not found")

// TokenRecord is the single live OAuth credential pair for the CRM.
// Client id and secret come from configuration and are never stored here.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	APIDomain    string    `json:"api_domain,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsValidAt reports whether the access token can still be used at now,
// keeping margin in reserve for skew and request latency.
func (t *TokenRecord) IsValidAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

func (t *TokenRecord) ExpiresWithin(now time.Time, d time.Duration) bool {
	if t == nil {
		return true
	}
	return !now.Before(t.ExpiresAt.Add(-d))
}

// TokenStore persists the token record. Load returns ErrTokenNotFound
// when nothing has been stored yet.
type TokenStore interface {
	Load(ctx context.Context) (*TokenRecord, error)
	Save(ctx context.Context, record *TokenRecord) error
}
