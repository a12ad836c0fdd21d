package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/integration/zoho"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/queue"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// TokenEndpoint is the Zoho accounts server.
type TokenEndpoint interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*zoho.TokenResponse, error)
	ExchangeCode(ctx context.Context, code string) (*zoho.TokenResponse, error)
}

type AccessTokenProvider interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// LeadCRM is the subset of the Zoho Leads API used for dedup by phone.
type LeadCRM interface {
	SearchLeadsByPhone(ctx context.Context, accessToken, phone string) ([]entity.CrmLead, error)
	CreateLead(ctx context.Context, accessToken string, lead entity.CrmLead) (string, error)
	UpdateLead(ctx context.Context, accessToken string, lead entity.CrmLead) error
}

type LeadEventPublisher interface {
	PublishLeadSubmitted(ctx context.Context, event queue.LeadEvent) error
}

// vendorMessager is implemented by errors that carry the CRM's own text.
type vendorMessager interface {
	VendorMessage() string
}
