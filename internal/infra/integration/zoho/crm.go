package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
)

const (
	DefaultAPIBaseURL = "https://www.zohoapis.in"
	leadsPath         = "/crm/v2/Leads"
)

// CRMClient covers the Leads module calls the gateway needs. The access
// token is passed per call; the client holds no credentials.
type CRMClient struct {
	HTTPClient *http.Client
	BaseURL    string
	logger     *zap.Logger
}

func NewCRMClient(baseURL string, timeout time.Duration, logger *zap.Logger) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CRMClient{
		HTTPClient: &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.Named("zoho"),
	}
}

// SearchLeadsByPhone returns every lead whose phone matches. Zoho answers
// 204 with no body when nothing matches.
func (c *CRMClient) SearchLeadsByPhone(ctx context.Context, accessToken, phone string) ([]entity.CrmLead, error) {
	endpoint := fmt.Sprintf("%s%s/search?phone=%s", c.BaseURL, leadsPath, url.QueryEscape(phone))

	resp, body, err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom(resp.StatusCode, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var envelope leadsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("zoho search response: %w", err)
	}

	leads := make([]entity.CrmLead, 0, len(envelope.Data))
	for _, r := range envelope.Data {
		leads = append(leads, fromRecord(r))
	}
	return leads, nil
}

func (c *CRMClient) CreateLead(ctx context.Context, accessToken string, lead entity.CrmLead) (string, error) {
	lead.ID = ""
	result, err := c.write(ctx, http.MethodPost, c.BaseURL+leadsPath, accessToken, lead)
	if err != nil {
		return "", err
	}
	if result.Details.ID == "" {
		return "", &APIError{StatusCode: http.StatusCreated, Message: "create response carried no lead id"}
	}

	c.logger.Debug("lead created", zap.String("lead_id", result.Details.ID))
	return result.Details.ID, nil
}

// UpdateLead writes the non-empty fields of lead onto lead.ID.
func (c *CRMClient) UpdateLead(ctx context.Context, accessToken string, lead entity.CrmLead) error {
	if lead.ID == "" {
		return fmt.Errorf("zoho update: lead id is required")
	}
	endpoint := fmt.Sprintf("%s%s/%s", c.BaseURL, leadsPath, url.PathEscape(lead.ID))

	if _, err := c.write(ctx, http.MethodPut, endpoint, accessToken, lead); err != nil {
		return err
	}

	c.logger.Debug("lead updated", zap.String("lead_id", lead.ID))
	return nil
}

func (c *CRMClient) write(ctx context.Context, method, endpoint, accessToken string, lead entity.CrmLead) (*writeResult, error) {
	record := toRecord(lead)
	record.ID = ""
	payload, err := json.Marshal(leadsEnvelope{Data: []leadRecord{record}})
	if err != nil {
		return nil, err
	}

	resp, body, err := c.do(ctx, method, endpoint, accessToken, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiErrorFrom(resp.StatusCode, body)
	}

	var envelope writeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("zoho write response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "empty write response"}
	}

	result := envelope.Data[0]
	if !strings.EqualFold(result.Status, "success") {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: result.Code, Message: result.Message}
	}
	return &result, nil
}

func (c *CRMClient) do(ctx context.Context, method, endpoint, accessToken string, payload []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, err
	}
	c.addAuthHeaders(req, accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("zoho %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("zoho %s %s: reading body: %w", method, req.URL.Path, err)
	}
	return resp, body, nil
}

func (c *CRMClient) addAuthHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Zoho-oauthtoken "+accessToken)
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

func apiErrorFrom(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && (eb.Code != "" || eb.Message != "") {
		return &APIError{StatusCode: status, Code: eb.Code, Message: eb.Message}
	}
	var we writeEnvelope
	if err := json.Unmarshal(body, &we); err == nil && len(we.Data) > 0 {
		return &APIError{StatusCode: status, Code: we.Data[0].Code, Message: we.Data[0].Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
