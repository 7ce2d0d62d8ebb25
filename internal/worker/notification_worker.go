package worker

import (
	"github.com/deskline/helpdesk/internal/service"
)

// StartNotificationWorker registers the handlers that relay domain events
// to Redis pub/sub.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
