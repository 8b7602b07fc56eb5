package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent  []*gomail.Message
	err   error
	delay time.Duration
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	time.Sleep(f.delay)
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSendBuildsMessage(t *testing.T) {
	fs := &fakeSender{}
	m := &SMTPMailer{from: "desk@example.com", dialer: fs, timeout: time.Second}

	err := m.Send(context.Background(), Message{
		To:      []string{"ops@example.com"},
		Subject: "Ticket TKT-1 escalated",
		Body:    "body",
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)
	assert.Equal(t, []string{"desk@example.com"}, fs.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"ops@example.com"}, fs.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Ticket TKT-1 escalated"}, fs.sent[0].GetHeader("Subject"))
}

func TestSendRequiresRecipients(t *testing.T) {
	m := &SMTPMailer{dialer: &fakeSender{}, timeout: time.Second}
	assert.ErrorIs(t, m.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipients)
}

func TestSendWrapsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	m := &SMTPMailer{dialer: &fakeSender{err: boom}, timeout: time.Second}
	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, boom)
}

func TestSendTimesOut(t *testing.T) {
	m := &SMTPMailer{dialer: &fakeSender{delay: 200 * time.Millisecond}, timeout: 10 * time.Millisecond}
	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
