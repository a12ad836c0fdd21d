package zoho

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
)

// TokenResponse is the body of /oauth/v2/token. Zoho answers some
// failures with 200 and only the error field set.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	APIDomain    string `json:"api_domain,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in"`

	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type leadRecord struct {
	ID          string  `json:"id,omitempty"`
	FirstName   *string `json:"First_Name,omitempty"`
	LastName    string  `json:"Last_Name,omitempty"`
	Email       string  `json:"Email,omitempty"`
	Phone       string  `json:"Phone,omitempty"`
	LeadSource  string  `json:"Lead_Source,omitempty"`
	Description string  `json:"Description,omitempty"`
	LeadStatus  string  `json:"Lead_Status,omitempty"`
}

type leadsEnvelope struct {
	Data []leadRecord `json:"data"`
}

type writeResult struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		ID string `json:"id"`
	} `json:"details"`
}

type writeEnvelope struct {
	Data []writeResult `json:"data"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// APIError is a non-success answer from a Zoho endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoho: status %d: %s", e.StatusCode, e.VendorMessage())
}

// VendorMessage is the text shown to operators, e.g. "INVALID_TOKEN: invalid oauth token".
func (e *APIError) VendorMessage() string {
	switch {
	case e.Code != "" && e.Message != "":
		return e.Code + ": " + e.Message
	case e.Code != "":
		return e.Code
	default:
		return e.Message
	}
}

// Retryable reports a failure that says nothing about the credentials:
// server errors and Zoho's throttle, which answers 400 "Access Denied"
// with "too many requests" in the description.
func (e *APIError) Retryable() bool {
	switch {
	case e.StatusCode >= http.StatusInternalServerError, e.StatusCode == http.StatusTooManyRequests:
		return true
	case strings.EqualFold(e.Code, "Access Denied"):
		return true
	default:
		return strings.Contains(strings.ToLower(e.Message), "too many requests")
	}
}

// toRecord sends First_Name whenever a name is present, even empty, so a
// one word name replaces a previous two word one.
func toRecord(l entity.CrmLead) leadRecord {
	r := leadRecord{
		ID:          l.ID,
		LastName:    l.LastName,
		Email:       l.Email,
		Phone:       l.Phone,
		LeadSource:  l.LeadSource,
		Description: l.Description,
		LeadStatus:  l.Status,
	}
	if l.FirstName != "" || l.LastName != "" {
		first := l.FirstName
		r.FirstName = &first
	}
	return r
}

func fromRecord(r leadRecord) entity.CrmLead {
	lead := entity.CrmLead{
		ID:          r.ID,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		LeadSource:  r.LeadSource,
		Description: r.Description,
		Status:      r.LeadStatus,
	}
	if r.FirstName != nil {
		lead.FirstName = *r.FirstName
	}
	return lead
}
