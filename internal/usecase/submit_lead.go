package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/entity"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/http/middleware"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/queue"
)

const (
	DefaultCallTimeout = 30 * time.Second
	fallbackLastName   = "Website Lead"
	interactionLayout  = "2006-01-02 15:04:05 MST"

	// Zoho rejects a Description longer than 32,000 characters.
	maxDescriptionChars = 32000
)

type SubmitLeadOptions struct {
	DefaultCountryCode string
	CallTimeout        time.Duration

	// Optional side effects, run after the CRM write succeeded.
	Journal entity.LeadJournalRepository
	Events  LeadEventPublisher
}

// SubmitLeadUseCase maps a form submission onto exactly one Zoho lead per
// normalized phone. Dedup relies on the CRM search, so two simultaneous
// first submissions for the same phone can still create two leads.
type SubmitLeadUseCase struct {
	tokens  AccessTokenProvider
	crm     LeadCRM
	sources *LeadSources
	opts    SubmitLeadOptions
	clock   Clock
	logger  *zap.Logger
}

func NewSubmitLeadUseCase(
	tokens AccessTokenProvider,
	crm LeadCRM,
	sources *LeadSources,
	opts SubmitLeadOptions,
	logger *zap.Logger,
) *SubmitLeadUseCase {
	if sources == nil {
		sources = DefaultLeadSources()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmitLeadUseCase{
		tokens:  tokens,
		crm:     crm,
		sources: sources,
		opts:    opts,
		clock:   systemClock{},
		logger:  logger.Named("submit_lead"),
	}
}

func (uc *SubmitLeadUseCase) WithClock(clock Clock) *SubmitLeadUseCase {
	uc.clock = clock
	return uc
}

func (uc *SubmitLeadUseCase) Execute(ctx context.Context, payload entity.LeadPayload) (*entity.SubmitResult, error) {
	phone, err := entity.NormalizePhone(payload.Phone, uc.opts.DefaultCountryCode)
	if err != nil {
		return nil, ErrInvalidPhone(payload.Phone)
	}

	// The CRM write must finish even if the form request goes away.
	ctx = context.WithoutCancel(ctx)
	log := uc.logger.With(zap.String("phone", phone), zap.String("form_type", payload.FormType))

	var token string
	err = uc.call(ctx, func(ctx context.Context) error {
		token, err = uc.tokens.GetValidAccessToken(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var matches []entity.CrmLead
	err = uc.call(ctx, func(ctx context.Context) error {
		matches, err = uc.crm.SearchLeadsByPhone(ctx, token, phone)
		return err
	})
	if err != nil {
		log.Error("zoho lead search failed", zap.Error(err))
		return nil, ErrCrmRequestFailed(vendorMessage(err), err)
	}

	line := uc.interactionLine(payload)
	leadSource := uc.sources.Label(payload.FormType)
	first, last := splitName(payload.Name)

	var result *entity.SubmitResult
	if len(matches) > 0 {
		existing := matches[0]
		if len(matches) > 1 {
			log.Warn("several zoho leads share this phone, updating the first", zap.Int("matches", len(matches)))
		}

		update := entity.CrmLead{
			ID:          existing.ID,
			FirstName:   first,
			LastName:    last,
			Email:       strings.TrimSpace(payload.Email),
			Description: appendInteraction(existing.Description, line),
		}
		err = uc.call(ctx, func(ctx context.Context) error {
			return uc.crm.UpdateLead(ctx, token, update)
		})
		if err != nil {
			log.Error("zoho lead update failed", zap.String("lead_id", existing.ID), zap.Error(err))
			return nil, ErrCrmRequestFailed(vendorMessage(err), err)
		}
		result = &entity.SubmitResult{LeadID: existing.ID, Created: false}
	} else {
		if last == "" {
			last = fallbackLastName
		}
		lead := entity.CrmLead{
			FirstName:   first,
			LastName:    last,
			Email:       strings.TrimSpace(payload.Email),
			Phone:       phone,
			LeadSource:  leadSource,
			Description: line,
			Status:      entity.LeadStatusNotContacted,
		}

		var id string
		err = uc.call(ctx, func(ctx context.Context) error {
			id, err = uc.crm.CreateLead(ctx, token, lead)
			return err
		})
		if err != nil {
			log.Error("zoho lead create failed", zap.Error(err))
			return nil, ErrCrmRequestFailed(vendorMessage(err), err)
		}
		result = &entity.SubmitResult{LeadID: id, Created: true}
	}

	log.Info("lead submitted", zap.String("lead_id", result.LeadID), zap.Bool("created", result.Created))
	uc.afterSubmit(ctx, phone, leadSource, payload, result)
	return result, nil
}

// call bounds a single vendor round trip.
func (uc *SubmitLeadUseCase) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.CallTimeout)
	defer cancel()
	return fn(ctx)
}

// afterSubmit records the submission locally and announces it. Neither may
// fail the submission: the CRM is the source of truth.
func (uc *SubmitLeadUseCase) afterSubmit(ctx context.Context, phone, leadSource string, payload entity.LeadPayload, result *entity.SubmitResult) {
	if uc.opts.Journal != nil {
		entry := &entity.LeadJournalEntry{
			Phone:        phone,
			Name:         strings.TrimSpace(payload.Name),
			Email:        strings.TrimSpace(payload.Email),
			LastFormType: payload.FormType,
			CrmLeadID:    result.LeadID,
		}
		err := uc.call(ctx, func(ctx context.Context) error {
			return uc.opts.Journal.Record(ctx, entry)
		})
		if err != nil {
			middleware.RecordIntegrationError("lead_journal")
			uc.logger.Error("could not journal lead", zap.String("lead_id", result.LeadID), zap.Error(err))
		}
	}

	if uc.opts.Events != nil {
		event := queue.LeadEvent{
			EventID:    uuid.NewString(),
			LeadID:     result.LeadID,
			Created:    result.Created,
			Phone:      phone,
			Name:       strings.TrimSpace(payload.Name),
			Email:      strings.TrimSpace(payload.Email),
			FormType:   payload.FormType,
			LeadSource: leadSource,
			Message:    payload.Message,
			OccurredAt: uc.clock.Now(),
		}
		err := uc.call(ctx, func(ctx context.Context) error {
			return uc.opts.Events.PublishLeadSubmitted(ctx, event)
		})
		if err != nil {
			middleware.RecordIntegrationError("rabbitmq")
			uc.logger.Error("could not publish lead event", zap.String("lead_id", result.LeadID), zap.Error(err))
		}
	}
}

// interactionLine renders one entry of the lead's history, e.g.
// "[2026-03-01 12:00:00 UTC] pdf_download: send brochure | project=Skyline".
func (uc *SubmitLeadUseCase) interactionLine(payload entity.LeadPayload) string {
	formType := collapseSpace(payload.FormType)
	if formType == "" {
		formType = "website"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", uc.clock.Now().UTC().Format(interactionLayout), formType)

	if msg := collapseSpace(payload.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}

	if extras := formatFields(payload.Fields); extras != "" {
		b.WriteString(" | ")
		b.WriteString(extras)
	}
	return b.String()
}

// formatFields renders extras as sorted "k=v" pairs on a single line.
func formatFields(fields map[string]string) string {
	values := make(map[string]string, len(fields))
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		key, val := collapseSpace(k), collapseSpace(v)
		if key == "" || val == "" {
			continue
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = val
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values[k])
	}
	return strings.Join(parts, ", ")
}

// collapseSpace keeps user text on one line so it cannot forge history entries.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// appendInteraction adds line to the history and drops the oldest lines
// once the result would exceed maxDescriptionChars. The newest line is
// always kept, cut to the limit if it is longer on its own.
func appendInteraction(description, line string) string {
	if utf8.RuneCountInString(line) > maxDescriptionChars {
		line = string([]rune(line)[:maxDescriptionChars])
	}

	description = strings.TrimRight(description, "\n ")
	if description == "" {
		return line
	}

	lines := strings.Split(description, "\n")
	size := utf8.RuneCountInString(description) + 1 + utf8.RuneCountInString(line)
	for len(lines) > 0 && size > maxDescriptionChars {
		size -= utf8.RuneCountInString(lines[0]) + 1
		lines = lines[1:]
	}
	return strings.Join(append(lines, line), "\n")
}

// splitName puts everything but the last word in the first name. Zoho
// requires Last_Name, so a one word name goes there.
func splitName(name string) (first, last string) {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return "", words[0]
	default:
		return strings.Join(words[:len(words)-1], " "), words[len(words)-1]
	}
}
