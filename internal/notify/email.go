package notify

import (
	"fmt"
	"net/smtp"

	"stellar-harvest-bot-go/internal/config"
)

type emailNotifier struct {
	host string
	port int
	from string
	to   string
}

func newEmailNotifier(cfg config.Notifications) *emailNotifier {
	return &emailNotifier{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		from: cfg.EmailFrom,
		to:   cfg.EmailTo,
	}
}

func (e *emailNotifier) Name() string { return "email" }

func (e *emailNotifier) Send(message, level string) error {
	if e.host == "" || e.to == "" {
		return fmt.Errorf("email channel enabled but smtp_host or email_to missing")
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Harvest bot %s\r\n\r\n%s\r\n",
		e.from, e.to, level, message)
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	if err := smtp.SendMail(addr, nil, e.from, []string{e.to}, []byte(body)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
