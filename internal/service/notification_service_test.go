package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/touripk/support-desk/internal/config"
	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/events"
	"github.com/touripk/support-desk/internal/mailer"
)

type recordingMailer struct {
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

type recordingSink struct {
	sent []events.Event
	err  error
}

func (s *recordingSink) Send(_ context.Context, e events.Event) error {
	s.sent = append(s.sent, e)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func newNotifier(mail mailer.Mailer, sink events.Sink) events.Dispatcher {
	d := events.NewInMemoryDispatcher()
	cfg := config.NotificationConfig{AdminEmails: []string{"ops@desk.test"}}
	NewNotificationService(d, zap.NewNop(), cfg, mail, sink).RegisterHandlers()
	return d
}

func TestNotificationMailsByEvent(t *testing.T) {
	mail := &recordingMailer{}
	sink := &recordingSink{}
	d := newNotifier(mail, sink)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, d.Publish(ctx, events.Event{
		Type: events.EventTicketCreated, Reference: "TKT-AAAA0001",
		Payload: events.TicketCreatedPayload{CompanyEmail: "support@sunny.test", Subject: "Pickup", EscalationDeadline: now.Add(48 * time.Hour)},
	}))
	require.NoError(t, d.Publish(ctx, events.Event{
		Type: events.EventTicketEscalated, Reference: "TKT-AAAA0001",
		Payload: events.TicketEscalatedPayload{Subject: "Pickup", Trigger: domain.TriggerEscalationOnRead},
	}))
	require.NoError(t, d.Publish(ctx, events.Event{
		Type: events.EventTicketResolved, Reference: "TKT-AAAA0001",
		Payload: events.TicketResolvedPayload{Subject: "Pickup", CustomerEmail: "tourist@mail.test"},
	}))
	require.NoError(t, d.Publish(ctx, events.Event{
		Type: events.EventTicketMessageAdded, Reference: "TKT-AAAA0001",
		Payload: events.TicketMessageAddedPayload{BodyPreview: "hi"},
	}))

	require.Len(t, mail.sent, 3)
	assert.Equal(t, []string{"support@sunny.test"}, mail.sent[0].To)
	assert.Equal(t, []string{"ops@desk.test"}, mail.sent[1].To)
	assert.Contains(t, mail.sent[1].Body, "48 hours")
	assert.Equal(t, []string{"tourist@mail.test"}, mail.sent[2].To)

	assert.Len(t, sink.sent, 4, "every event is forwarded")
}

func TestNotificationFailuresAreSwallowed(t *testing.T) {
	mail := &recordingMailer{err: errors.New("smtp down")}
	sink := &recordingSink{err: errors.New("broker down")}
	d := newNotifier(mail, sink)

	err := d.Publish(context.Background(), events.Event{
		Type: events.EventTicketEscalated, Reference: "TKT-AAAA0002",
		Payload: events.TicketEscalatedPayload{Trigger: domain.TriggerManualEscalation},
	})
	assert.NoError(t, err)
	assert.Len(t, mail.sent, 1)
	assert.Len(t, sink.sent, 1)
}

func TestNotificationWithoutChannels(t *testing.T) {
	d := newNotifier(nil, nil)
	assert.NoError(t, d.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{CompanyEmail: "support@sunny.test"},
	}))
}
