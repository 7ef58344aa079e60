package notification

import (
	"context"
	"strconv"

	"projector-maintenance-api/internal/notification"
	"projector-maintenance-api/internal/service"
)

// ServiceAdapter adapts the notification client to the service layer interface
type ServiceAdapter struct {
	client notification.Notifier
}

// NewServiceAdapter creates a new notification service adapter
func NewServiceAdapter(client notification.Notifier) *ServiceAdapter {
	return &ServiceAdapter{
		client: client,
	}
}

// SendVisitNotification sends a visit lifecycle notification
func (a *ServiceAdapter) SendVisitNotification(ctx context.Context, visitNotification service.VisitNotification) error {
	clientNotification := notification.Notification{
		Level:       mapNotificationLevel(visitNotification.Type),
		Event:       string(visitNotification.Type),
		VisitID:     visitNotification.VisitID.String(),
		WorkerEmail: visitNotification.WorkerEmail,
		SiteContact: visitNotification.SiteContact,
		Message:     visitNotification.Message,
		Metadata:    visitNotification.Metadata,
	}

	if clientNotification.Metadata == nil {
		clientNotification.Metadata = make(map[string]string)
	}
	if visitNotification.WorkerName != "" {
		clientNotification.Metadata["worker_name"] = visitNotification.WorkerName
	}
	if visitNotification.SiteName != "" {
		clientNotification.Metadata["site_name"] = visitNotification.SiteName
	}
	if visitNotification.ServiceNumber > 0 {
		clientNotification.Metadata["service_number"] = strconv.Itoa(visitNotification.ServiceNumber)
	}

	return a.client.SendNotificationWithContext(ctx, clientNotification)
}

// mapNotificationLevel maps service notification types to client notification levels
func mapNotificationLevel(notificationType service.NotificationType) notification.NotificationLevel {
	switch notificationType {
	case service.NotificationTypeVisitScheduled:
		return notification.LevelInfo
	case service.NotificationTypeVisitCompleted:
		return notification.LevelInfo
	case service.NotificationTypeVisitUnassigned:
		return notification.LevelWarning
	default:
		return notification.LevelInfo
	}
}
