// Package notify e-mails requesters when their title becomes available.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/s0up4200/requestarr/store"
)

// EmailSender is the subset of the Resend emails service used here
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

var bodyTemplate = template.Must(template.New("available").Parse(
	`<p>Hi {{.RequestedBy}},</p>
<p><strong>{{.Title}}</strong>{{with .Year}} ({{.}}){{end}} that you requested is now available on Plex.</p>`))

// Mailer sends availability notifications through Resend
type Mailer struct {
	emails EmailSender
	from   string
	logger zerolog.Logger
}

// NewMailer creates a Mailer using the Resend API
func NewMailer(apiKey, from string, logger zerolog.Logger) (*Mailer, error) {
	if apiKey == "" {
		return nil, errors.New("resend API key is required")
	}
	client := resend.NewClient(apiKey)
	return NewMailerWithSender(client.Emails, from, logger)
}

// NewMailerWithSender creates a Mailer on top of an existing sender
func NewMailerWithSender(emails EmailSender, from string, logger zerolog.Logger) (*Mailer, error) {
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	return &Mailer{emails: emails, from: from, logger: logger}, nil
}

// Notify mails the requester of rec
func (m *Mailer) Notify(ctx context.Context, rec *store.Record) error {
	if rec.RequestedByEmail == "" {
		return fmt.Errorf("request %d has no requester e-mail", rec.ID)
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, struct {
		*store.Record
		Year string
	}{rec, rec.Year()}); err != nil {
		return fmt.Errorf("render notification: %w", err)
	}

	sent, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{rec.RequestedByEmail},
		Subject: fmt.Sprintf("%s is now available", rec.Title),
		Html:    body.String(),
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	m.logger.Debug().
		Str("message_id", sent.Id).
		Str("to", rec.RequestedByEmail).
		Int64("request_id", rec.ID).
		Msg("Sent availability e-mail")
	return nil
}
