package services

import (
	"log"
	"time"

	"pricewatch_backend/models"
)

// Notification kinds
const (
	NotificationTypeAlert         = "alert"
	NotificationTypeServiceStatus = "service_status"
)

// Service status messages sent by the scheduler
const (
	ServiceStatusPaused  = "service paused"
	ServiceStatusResumed = "service resumed"
)

// Notification is one message for a single user, either a threshold alert
// or a service-status change. Formatting for a concrete channel (push,
// WhatsApp) happens downstream of the sink.
type Notification struct {
	Type      string        `json:"type"`
	UserID    string        `json:"user_id"`
	Message   string        `json:"message,omitempty"`
	Alert     *models.Alert `json:"alert,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NotificationSink receives notifications for delivery
type NotificationSink interface {
	Send(notification Notification) error
}

// AlertNotification builds an alert notification for the alert's owner
func AlertNotification(alert *models.Alert) Notification {
	return Notification{
		Type:      NotificationTypeAlert,
		UserID:    alert.UserID,
		Alert:     alert,
		Timestamp: time.Now(),
	}
}

// ServiceStatusNotification builds a service-status notification
func ServiceStatusNotification(userID, message string) Notification {
	return Notification{
		Type:      NotificationTypeServiceStatus,
		UserID:    userID,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// LogNotificationSink writes every notification to the process log. It is
// the fallback sink and is always available.
type LogNotificationSink struct{}

// NewLogNotificationSink creates a log-only sink
func NewLogNotificationSink() *LogNotificationSink {
	return &LogNotificationSink{}
}

// Send logs the notification
func (s *LogNotificationSink) Send(n Notification) error {
	switch n.Type {
	case NotificationTypeAlert:
		log.Printf("Notification [alert] user=%s ticker=%s type=%s trigger=%s threshold=%s",
			n.UserID, n.Alert.Ticker, n.Alert.AlertType,
			n.Alert.TriggerPrice.String(), n.Alert.Threshold.String())
	default:
		log.Printf("Notification [%s] user=%s message=%q", n.Type, n.UserID, n.Message)
	}
	return nil
}
