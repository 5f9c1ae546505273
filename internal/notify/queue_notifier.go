package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/queue"
)

// Dispatcher is the queue side consumed by the QueueNotifier.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg queue.NotificationMessage) error
}

// QueueNotifier implements Notifier by enqueuing delivery jobs for the
// notify worker. Enqueueing succeeds or fails fast; actual channel delivery
// happens asynchronously.
type QueueNotifier struct {
	dispatcher Dispatcher
}

// NewQueueNotifier wraps a notification dispatcher.
func NewQueueNotifier(dispatcher Dispatcher) *QueueNotifier {
	return &QueueNotifier{dispatcher: dispatcher}
}

// SendSMS enqueues an SMS job.
func (n *QueueNotifier) SendSMS(ctx context.Context, appointmentID, phone, message string) error {
	return n.enqueue(ctx, appointmentID, domain.NotificationChannelSMS, phone, message)
}

// SendEmail enqueues an email job.
func (n *QueueNotifier) SendEmail(ctx context.Context, appointmentID, address, message string) error {
	return n.enqueue(ctx, appointmentID, domain.NotificationChannelEmail, address, message)
}

func (n *QueueNotifier) enqueue(ctx context.Context, appointmentID string, channel domain.NotificationChannel, recipient, message string) error {
	msg := queue.NotificationMessage{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Channel:       channel,
		Recipient:     recipient,
		Message:       message,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := n.dispatcher.Dispatch(ctx, msg); err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", channel, err)
	}
	return nil
}
