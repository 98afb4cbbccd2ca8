package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to domain
// events and drains its intent queue on a background goroutine.
func StartNotificationWorker(ctx context.Context, notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		return
	}
	notifications.RegisterHandlers()

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("notification worker stopping")
				return
			case intent, ok := <-notifications.Queue():
				if !ok {
					return
				}
				notifications.Deliver(ctx, intent)
			}
		}
	}()
}
