package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
)

const mailSubject = "Leave notification"

// Mailer sends a notification to an employee's mailbox.
type Mailer interface {
	Send(ctx context.Context, to *domain.Employee, message string) error
}

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send sendFunc
}

// NewSMTPMailer creates a new SMTPMailer. Authentication is skipped without a username.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, send: smtp.SendMail}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send delivers message to the employee's email address.
func (m *SMTPMailer) Send(ctx context.Context, to *domain.Employee, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, m.auth, m.cfg.From, []string{to.Email}, buildMail(m.cfg.From, to, message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to.ID, err)
	}
	return nil
}

func buildMail(from string, to *domain.Employee, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	if to.Name != "" {
		fmt.Fprintf(&b, "To: %s <%s>\r\n", to.Name, to.Email)
	} else {
		fmt.Fprintf(&b, "To: %s\r\n", to.Email)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mailSubject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer logs notifications instead of sending them.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer creates a new LogMailer.
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, to *domain.Employee, message string) error {
	m.logger.Info().
		Str("recipient_id", to.ID).
		Str("email", to.Email).
		Str("body", message).
		Msg("notification mailed")
	return nil
}
