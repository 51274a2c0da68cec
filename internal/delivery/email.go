package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const defaultEmailSubject = "Medication reminder"

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// EmailSender sends reminders as plain text e-mail over SMTP
type EmailSender struct {
	dialer  mailDialer
	from    string
	domain  string
	subject string
	logger  *zap.Logger
}

// NewEmailSender creates an EmailSender
func NewEmailSender(cfg EmailConfig, logger *zap.Logger) (*EmailSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from address must be provided")
	}
	return newEmailSenderWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, logger), nil
}

func newEmailSenderWithDialer(d mailDialer, cfg EmailConfig, logger *zap.Logger) *EmailSender {
	subject := cfg.Subject
	if subject == "" {
		subject = defaultEmailSubject
	}
	domain := cfg.Host
	if at := strings.LastIndex(cfg.From, "@"); at >= 0 && at < len(cfg.From)-1 {
		domain = cfg.From[at+1:]
	}
	return &EmailSender{
		dialer:  d,
		from:    cfg.From,
		domain:  domain,
		subject: subject,
		logger:  logger,
	}
}

// Send delivers message to address. The returned id is the Message-ID
// header value without angle brackets.
func (s *EmailSender) Send(ctx context.Context, address, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("%s@%s", ulid.Make().String(), s.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", s.subject)
	m.SetHeader("Message-ID", "<"+messageID+">")
	m.SetBody("text/plain", message)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("smtp send failed", zap.Error(err))
		return "", fmt.Errorf("failed to send e-mail: %w", err)
	}

	s.logger.Debug("e-mail sent", zap.String("provider_message_id", messageID))
	return messageID, nil
}
