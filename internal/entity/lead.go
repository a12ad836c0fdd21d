package entity

import (
	"context"
	"time"
)

// LeadPayload is what a marketing form hands to the gateway.
type LeadPayload struct {
	Name     string            `json:"name"`
	Email    string            `json:"email,omitempty"`
	Phone    string            `json:"phone"`
	FormType string            `json:"form_type"`
	Message  string            `json:"message,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"` // form specific extras
}

type SubmitResult struct {
	LeadID  string `json:"lead_id"`
	Created bool   `json:"created"`
}

// CrmLead mirrors the subset of the Zoho Leads module we read and write.
type CrmLead struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	LeadSource  string
	Description string
	Status      string
}

const LeadStatusNotContacted = "Not Contacted"

// LeadJournalEntry is the local record of a submission, keyed by phone.
type LeadJournalEntry struct {
	ID              string    `json:"id"`
	Phone           string    `json:"phone"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	LastFormType    string    `json:"last_form_type"`
	CrmLeadID       string    `json:"crm_lead_id"`
	SubmissionCount int       `json:"submission_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type LeadJournalRepository interface {
	Record(ctx context.Context, entry *LeadJournalEntry) error
}
