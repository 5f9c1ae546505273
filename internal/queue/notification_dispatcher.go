package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// NotificationDispatcher publishes backup notification jobs to Kafka.
type NotificationDispatcher struct {
	writer *kafka.Writer
}

// NewNotificationDispatcher constructs a dispatcher for the given topic.
func NewNotificationDispatcher(k *Kafka, topic string) *NotificationDispatcher {
	return &NotificationDispatcher{writer: k.NewWriter(topic)}
}

// Dispatch writes the notification message, keyed by appointment so all
// notifications for one appointment stay ordered within a partition.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, msg NotificationMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notification dispatcher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   []byte(msg.AppointmentID),
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := d.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("notification dispatcher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (d *NotificationDispatcher) Close() error {
	return d.writer.Close()
}
