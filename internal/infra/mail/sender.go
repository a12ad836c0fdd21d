package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/zoho-lead-gateway/internal/infra/queue"
)

var (
	newLeadTmpl        = template.Must(template.New("new_lead").Parse(newLeadTemplate))
	refreshFailureTmpl = template.Must(template.New("refresh_failure").Parse(refreshFailureTemplate))
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers operator notifications over SMTP.
type EmailSender struct {
	From   string
	To     string
	dialer dialer
}

func NewEmailSender(host string, port int, user, password, from, to string) *EmailSender {
	return &EmailSender{
		From:   from,
		To:     to,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

func (s *EmailSender) SendNewLeadAlert(ctx context.Context, event queue.LeadEvent) error {
	data := NewLeadEmailData{
		LeadID:     event.LeadID,
		Name:       event.Name,
		Phone:      event.Phone,
		Email:      event.Email,
		FormType:   event.FormType,
		LeadSource: event.LeadSource,
		Message:    event.Message,
		OccurredAt: event.OccurredAt,
	}

	name := event.Name
	if name == "" {
		name = "+" + event.Phone
	}
	subject := fmt.Sprintf("New lead: %s (%s)", name, event.LeadSource)
	return s.send(ctx, subject, newLeadTmpl, data)
}

func (s *EmailSender) SendRefreshFailureAlert(ctx context.Context, reason string) error {
	data := RefreshFailureEmailData{Reason: reason, OccurredAt: time.Now().UTC()}
	return s.send(ctx, "Action needed: Zoho CRM token refresh failed", refreshFailureTmpl, data)
}

func (s *EmailSender) send(ctx context.Context, subject string, tmpl *template.Template, data any) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("rendering email template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body.String())

	// gomail takes no context.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending email via SMTP: %w", err)
	}
	return nil
}
