package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
)

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

// Record keeps one row per normalized phone and counts how many times
// that visitor reached us.
func (r *LeadRepository) Record(ctx context.Context, entry *entity.LeadJournalEntry) error {
	query := `
		INSERT INTO lead_submissions (phone, name, email, last_form_type, crm_lead_id, submission_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW())
		ON CONFLICT (phone)
		DO UPDATE SET
			name = COALESCE(EXCLUDED.name, lead_submissions.name),
			email = COALESCE(EXCLUDED.email, lead_submissions.email),
			last_form_type = EXCLUDED.last_form_type,
			crm_lead_id = EXCLUDED.crm_lead_id,
			submission_count = lead_submissions.submission_count + 1,
			updated_at = NOW()
		RETURNING id, submission_count, created_at, updated_at
	`

	return r.DB.QueryRowContext(
		ctx,
		query,
		entry.Phone,
		nullString(entry.Name),
		nullString(entry.Email),
		entry.LastFormType,
		entry.CrmLeadID,
	).Scan(
		&entry.ID,
		&entry.SubmissionCount,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
