package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

const magicLinkSubject = "Your Safe Job sign-in link"

// MagicLink renders the sign-in email for link. The body states how long the
// link stays valid.
func MagicLink(link string, ttl time.Duration) (subject, body string) {
	escaped := html.EscapeString(link)
	body = fmt.Sprintf(
		`<p>Click the link below to sign in (expires in %d minutes):</p><p><a href="%s">%s</a></p>`+
			`<p>If you did not ask to sign in, ignore this email.</p>`,
		int(ttl.Minutes()), escaped, escaped,
	)
	return magicLinkSubject, body
}

// LogSender writes emails to the log instead of delivering them. Local only:
// the log line contains a live sign-in link.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "email not delivered (local dev)", "to", to, "subject", subject, "body", body)
	return nil
}

type ResendSender struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.DebugContext(ctx, "email delivered", "id", sent.Id)
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	logger = logger.With("component", "email")
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}
