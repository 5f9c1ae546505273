package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
)

// NotificationMessage instructs the notify worker to deliver one backup
// notification on one channel.
type NotificationMessage struct {
	ID            uuid.UUID                  `json:"id"`
	AppointmentID string                     `json:"appointment_id"`
	Channel       domain.NotificationChannel `json:"channel"`
	Recipient     string                     `json:"recipient"`
	Message       string                     `json:"message"`
	EnqueuedAt    time.Time                  `json:"enqueued_at"`
}
