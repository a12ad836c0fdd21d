package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAccountsURL = "https://accounts.zoho.in"
	tokenPath          = "/oauth/v2/token"
	defaultExpiresIn   = 3600
)

// AccountsClient talks to the Zoho accounts server that mints tokens.
type AccountsClient struct {
	HTTPClient   *http.Client
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func NewAccountsClient(baseURL, clientID, clientSecret, redirectURI string, timeout time.Duration) *AccountsClient {
	if baseURL == "" {
		baseURL = DefaultAccountsURL
	}
	return &AccountsClient{
		HTTPClient:   &http.Client{Timeout: timeout},
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
	}
}

func (c *AccountsClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)

	return c.requestToken(ctx, form)
}

// ExchangeCode trades a one-time authorization code for the first token pair.
func (c *AccountsClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	if c.RedirectURI != "" {
		form.Set("redirect_uri", c.RedirectURI)
	}

	return c.requestToken(ctx, form)
}

func (c *AccountsClient) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zoho token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("zoho token response: %w", err)
	}

	var out TokenResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: out.Error, Message: out.ErrorDescription}
		if apiErr.Code == "" && apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("zoho token response: %w", decodeErr)
	}
	if out.Error != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: out.Error, Message: out.ErrorDescription}
	}
	if out.AccessToken == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "response carried no access_token"}
	}
	if out.ExpiresIn <= 0 {
		out.ExpiresIn = defaultExpiresIn
	}

	return &out, nil
}
