package smtp

import (
	"context"
	"fmt"
	"strings"

	"github.com/healthvault-api/internal/config"
	"github.com/healthvault-api/internal/pkg/id"
	"gopkg.in/gomail.v2"
)

// Mailer sends multipart (plain + HTML) emails and returns the Message-ID.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html, text string) (string, error)
}

type mailer struct {
	dialer *gomail.Dialer
	from   string
	domain string
}

func NewMailer(cfg *config.Config) Mailer {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &mailer{dialer: d, from: cfg.SMTPFrom, domain: senderDomain(cfg.SMTPFrom)}
}

func (m *mailer) SendEmail(ctx context.Context, to, subject, html, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	messageID := fmt.Sprintf("<%s@%s>", id.New(), m.domain)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return messageID, nil
}

func senderDomain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return strings.Trim(from[at+1:], "> ")
	}
	return "localhost"
}
