// Package notify e-mails new consultation briefs to the architects on duty.
package notify

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/aymerick/raymond"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/triage"
)

//go:embed templates/*.hbs
var templateFS embed.FS

// Message is a single outgoing e-mail
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a message and returns the provider's message id
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Notifier fans a brief out to every configured recipient
type Notifier struct {
	mailer     Mailer
	recipients []string
	log        *zap.Logger
	limit      int

	text *raymond.Template
	html *raymond.Template
}

// NewNotifier parses the embedded templates. Recipients with surrounding
// whitespace are trimmed and blanks dropped.
func NewNotifier(mailer Mailer, recipients []string, log *zap.Logger) (*Notifier, error) {
	if log == nil {
		log = zap.NewNop()
	}

	text, err := parseTemplate("templates/brief.txt.hbs")
	if err != nil {
		return nil, err
	}
	html, err := parseTemplate("templates/brief.html.hbs")
	if err != nil {
		return nil, err
	}

	var to []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}

	return &Notifier{
		mailer:     mailer,
		recipients: to,
		log:        log.Named("notify"),
		limit:      4,
		text:       text,
		html:       html,
	}, nil
}

func parseTemplate(name string) (*raymond.Template, error) {
	src, err := templateFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	tpl, err := raymond.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tpl, nil
}

// Recipients returns the addresses briefs are sent to
func (n *Notifier) Recipients() []string {
	return append([]string(nil), n.recipients...)
}

// NotifyBrief sends the brief to every recipient. The first delivery error is
// returned after all sends finish.
func (n *Notifier) NotifyBrief(ctx context.Context, b *domain.Brief) error {
	if len(n.recipients) == 0 {
		return nil
	}

	msg, err := n.Render(b)
	if err != nil {
		return err
	}

	// A failed send must not cancel the others
	var g errgroup.Group
	g.SetLimit(n.limit)
	for _, to := range n.recipients {
		m := msg
		m.To = to
		g.Go(func() error {
			id, err := n.mailer.Send(ctx, m)
			if err != nil {
				n.log.Warn("brief notification failed",
					zap.String("brief_id", b.ID),
					zap.String("to", m.To),
					zap.Error(err))
				return fmt.Errorf("send to %s: %w", m.To, err)
			}
			n.log.Info("brief notification sent",
				zap.String("brief_id", b.ID),
				zap.String("to", m.To),
				zap.String("message_id", id))
			return nil
		})
	}
	return g.Wait()
}

// Render builds the message for a brief without a recipient
func (n *Notifier) Render(b *domain.Brief) (Message, error) {
	inq := b.Inquiry
	flags := triage.Assess(inq)

	domains := make([]string, len(inq.Domains))
	for i, k := range inq.Domains {
		domains[i] = string(k)
	}

	ctx := map[string]interface{}{
		"id":             b.ID,
		"banner":         flags.Banner,
		"name":           inq.Identity.Name,
		"organization":   inq.Identity.Organization,
		"email":          inq.Identity.Email,
		"scale":          string(inq.Scale),
		"timeline":       string(inq.Timeline),
		"source":         inq.Source,
		"domains":        domains,
		"features":       strings.Join(inq.Features, ", "),
		"recommendation": b.Recommendation,
	}
	if b.Org != nil {
		ctx["orgTitle"] = b.Org.Title
		ctx["orgDescription"] = b.Org.Description
	}

	text, err := n.text.Exec(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	html, err := n.html.Exec(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}

	subject := fmt.Sprintf("New brief: %s (%s)", inq.Identity.Organization, inq.Scale)
	if flags.Urgent {
		subject = "[URGENT] " + subject
	}

	return Message{Subject: subject, Text: text, HTML: html}, nil
}
