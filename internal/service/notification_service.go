package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/touripk/support-desk/internal/config"
	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/events"
	"github.com/touripk/support-desk/internal/mailer"
)

// NotificationService handles emitting notifications for domain events.
// Delivery failures are logged and never reach the operation that raised the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	mail       mailer.Mailer
	sink       events.Sink
}

// NewNotificationService creates the service. mail and sink may be nil to disable those channels.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, mail mailer.Mailer, sink events.Sink) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		mail:       mail,
		sink:       sink,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	events.SubscribeAll(n.dispatcher, n.forward)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || payload.CompanyEmail == "" {
		return nil
	}
	n.sendMail(ctx, event, mailer.Message{
		To:      []string{payload.CompanyEmail},
		Subject: fmt.Sprintf("New support ticket %s", event.Reference),
		Body: fmt.Sprintf("A customer opened ticket %s: %q (%s, priority %s).\n"+
			"Please reply before %s or the ticket will be escalated to the marketplace team.",
			event.Reference, payload.Subject, payload.IssueType, payload.Priority,
			payload.EscalationDeadline.Format("2006-01-02 15:04 MST")),
	})
	return nil
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	n.logger.Warn("TicketEscalated", zap.String("reference", event.Reference), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok || len(n.cfg.AdminEmails) == 0 {
		return nil
	}
	reason := "the company did not respond within 48 hours"
	if payload.Trigger == domain.TriggerManualEscalation {
		reason = "the customer escalated it after the response deadline passed"
	}
	n.sendMail(ctx, event, mailer.Message{
		To:      n.cfg.AdminEmails,
		Subject: fmt.Sprintf("Ticket %s escalated", event.Reference),
		Body:    fmt.Sprintf("Ticket %s (%q) was escalated because %s.", event.Reference, payload.Subject, reason),
	})
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok || payload.CustomerEmail == "" {
		return nil
	}
	n.sendMail(ctx, event, mailer.Message{
		To:      []string{payload.CustomerEmail},
		Subject: fmt.Sprintf("Your ticket %s was resolved", event.Reference),
		Body:    fmt.Sprintf("Your support ticket %q has been marked as resolved.", payload.Subject),
	})
	return nil
}

// forward logs every event and mirrors it to the external sink.
func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("reference", event.Reference),
		zap.String("actor_role", string(event.Actor.Role)))
	if n.sink == nil {
		return nil
	}
	if err := n.sink.Send(ctx, event); err != nil {
		n.logger.Warn("forward ticket event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("reference", event.Reference),
			zap.Error(err))
	}
	return nil
}

func (n *NotificationService) sendMail(ctx context.Context, event events.Event, msg mailer.Message) {
	if n.mail == nil {
		n.logger.Debug("mail disabled, skipping notification",
			zap.String("event_type", string(event.Type)),
			zap.String("reference", event.Reference))
		return
	}
	if err := n.mail.Send(ctx, msg); err != nil {
		n.logger.Warn("send notification mail failed",
			zap.String("event_type", string(event.Type)),
			zap.String("reference", event.Reference),
			zap.Strings("to", msg.To),
			zap.Error(err))
	}
}
