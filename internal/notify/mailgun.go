package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunMailer sends mail via the Mailgun API
type MailgunMailer struct {
	client  *mailgun.MailgunImpl
	from    string
	timeout time.Duration
}

// NewMailgunMailer creates a Mailgun mailer. fromName may be empty.
func NewMailgunMailer(domain, apiKey, fromEmail, fromName string) (*MailgunMailer, error) {
	if domain == "" {
		return nil, fmt.Errorf("MAILGUN_DOMAIN is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("MAILGUN_API_KEY is required")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required")
	}

	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}

	return &MailgunMailer{
		client:  mailgun.NewMailgun(domain, apiKey),
		from:    from,
		timeout: 30 * time.Second,
	}, nil
}

// Send delivers msg and returns the Mailgun message id
func (m *MailgunMailer) Send(ctx context.Context, msg Message) (string, error) {
	message := m.client.NewMessage(m.from, msg.Subject, msg.Text, msg.To)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, id, err := m.client.Send(sendCtx, message)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return id, nil
}
