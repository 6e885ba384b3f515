package notifier

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/leaveledger/internal/domain"
)

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", Port: 2525, Username: "bot", Password: "pw", From: "leave@example.com"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), &domain.Employee{ID: "emp-1", Name: "Alice", Email: "alice@example.com"}, "approved")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: Alice <alice@example.com>\r\n")
	assert.Contains(t, gotMsg, "Subject: Leave notification\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\napproved\r\n"))
}

func TestSMTPMailer_SendErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "leave@example.com"})
	assert.Nil(t, m.auth)

	boom := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.Send(context.Background(), &domain.Employee{ID: "emp-1", Email: "a@example.com"}, "x")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, &domain.Employee{ID: "emp-1", Email: "a@example.com"}, "x"), context.Canceled)
}

func TestLogMailer_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(zerolog.New(&buf))

	require.NoError(t, m.Send(context.Background(), &domain.Employee{ID: "emp-1", Email: "a@example.com"}, "hi there"))
	assert.Contains(t, buf.String(), `"body":"hi there"`)
	assert.Contains(t, buf.String(), `"recipient_id":"emp-1"`)
}
