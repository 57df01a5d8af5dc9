// Package mail renders notification templates with Liquid and hands the
// result to a delivery driver (SES in production, the log otherwise).
package mail

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/vouchercheck/internal/verify/metrics"
	"github.com/aussiebroadwan/vouchercheck/pkg/slogx"
	"github.com/osteele/liquid"
)

// Template names.
const (
	TemplateRequestSubmitted = "request_submitted"
	TemplateRequestOutcome   = "request_outcome"
	TemplateVerifyEmail      = "verify_email"
)

var templateNames = []string{TemplateRequestSubmitted, TemplateRequestOutcome, TemplateVerifyEmail}

//go:embed templates/*.liquid
var templateFS embed.FS

var ErrUnknownTemplate = errors.New("mail: unknown template")

// Message is a rendered mail ready for a Sender.
type Message struct {
	From     string
	To       string
	Subject  string
	Text     string
	HTML     string
	Template string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type compiled struct {
	subject, text, html *liquid.Template
}

// Mailer renders named templates and sends them through a Sender.
type Mailer struct {
	Sender  Sender
	From    string
	Timeout time.Duration
	Metrics *metrics.Metrics

	templates map[string]compiled
}

// NewMailer parses every embedded template up front so a broken template
// fails at startup rather than on the first send.
func NewMailer(sender Sender, from string, m *metrics.Metrics) (*Mailer, error) {
	engine := liquid.NewEngine()
	registerFilters(engine)

	templates := make(map[string]compiled, len(templateNames))
	for _, name := range templateNames {
		var c compiled
		for part, dst := range map[string]**liquid.Template{"subject": &c.subject, "text": &c.text, "html": &c.html} {
			src, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.%s.liquid", name, part))
			if err != nil {
				return nil, fmt.Errorf("mail: read %s.%s: %w", name, part, err)
			}
			tpl, perr := engine.ParseTemplate(src)
			if perr != nil {
				return nil, fmt.Errorf("mail: parse %s.%s: %w", name, part, perr)
			}
			*dst = tpl
		}
		templates[name] = c
	}

	return &Mailer{
		Sender:    sender,
		From:      from,
		Timeout:   10 * time.Second,
		Metrics:   m,
		templates: templates,
	}, nil
}

func registerFilters(engine *liquid.Engine) {
	// {{ amount | money }} -> "50.00"
	engine.RegisterFilter("money", func(v any) string {
		switch n := v.(type) {
		case float64:
			return fmt.Sprintf("%.2f", n)
		case int:
			return fmt.Sprintf("%d.00", n)
		default:
			return fmt.Sprint(v)
		}
	})
}

// Render produces the message for template without sending it.
func (m *Mailer) Render(to, template string, data map[string]any) (Message, error) {
	c, ok := m.templates[template]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}

	bindings := liquid.Bindings(data)
	subject, err := c.subject.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("mail: render %s subject: %w", template, err)
	}
	text, err := c.text.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("mail: render %s text: %w", template, err)
	}
	html, err := c.html.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("mail: render %s html: %w", template, err)
	}

	return Message{
		From:     m.From,
		To:       to,
		Subject:  strings.TrimSpace(subject),
		Text:     text,
		HTML:     html,
		Template: template,
	}, nil
}

// SendMail renders and sends template to a single recipient, bounded by
// the mailer's timeout. Failures are counted and returned; callers treat
// them as best effort.
func (m *Mailer) SendMail(ctx context.Context, to, template string, data map[string]any) error {
	msg, err := m.Render(to, template, data)
	if err != nil {
		m.Metrics.IncrementMailFailures(template)
		return err
	}

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	if err := m.Sender.Send(ctx, msg); err != nil {
		m.Metrics.IncrementMailFailures(template)
		return fmt.Errorf("mail: send %s: %w", template, err)
	}

	m.Metrics.IncrementMailSent(template)
	slogx.FromContext(ctx).Debug("mail sent", "template", template)
	return nil
}
