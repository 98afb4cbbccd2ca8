package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// NotificationService turns domain events into notification intents and
// queues them for asynchronous delivery. Delivery failures never propagate
// to the originating lifecycle operation.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	queue      chan events.NotificationIntent
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan events.NotificationIntent, size),
	}
}

// RegisterHandlers subscribes to events that carry notification intents.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleEvent)
}

// Queue exposes the intent channel for the worker.
func (n *NotificationService) Queue() <-chan events.NotificationIntent {
	return n.queue
}

// Close stops accepting intents.
func (n *NotificationService) Close() {
	close(n.queue)
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	for _, intent := range event.Intents {
		select {
		case n.queue <- intent:
		default:
			// best effort: drop rather than block the mutation path
			n.logger.Warn("notification queue full, dropping intent",
				zap.String("kind", string(intent.Kind)),
				zap.String("ticket_id", intent.TicketID))
		}
	}
	return nil
}

// Deliver performs the (stubbed) outbound delivery for one intent.
func (n *NotificationService) Deliver(ctx context.Context, intent events.NotificationIntent) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Info("delivering notification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("kind", string(intent.Kind)),
		zap.String("ticket_id", intent.TicketID),
		zap.String("recipient_id", intent.RecipientID))
	if n.cfg.WebhookURL != "" {
		n.logger.Debug("webhook notification",
			zap.String("url", n.cfg.WebhookURL),
			zap.String("kind", string(intent.Kind)))
	}
}
