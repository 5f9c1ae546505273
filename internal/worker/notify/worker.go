// Package notify hosts the worker that drains the backup notification topic
// and delivers messages over the configured channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acarcay/voice-agent/internal/app"
	"github.com/acarcay/voice-agent/internal/domain"
	notifysvc "github.com/acarcay/voice-agent/internal/notify"
	"github.com/acarcay/voice-agent/internal/queue"
	"github.com/acarcay/voice-agent/internal/repository"
	"github.com/acarcay/voice-agent/pkg/logger"
)

// Worker consumes enqueued notification jobs and delivers them.
type Worker struct {
	container *app.Container

	sms    notifysvc.SMSSender
	email  notifysvc.EmailSender
	logs   repository.NotificationLogRepository
	logger *logger.Logger
}

// New creates a notification worker backed by the container's senders.
func New(container *app.Container) *Worker {
	return &Worker{
		container: container,
		sms:       container.Senders().SMS,
		email:     container.Senders().Email,
		logs:      container.Repositories().NotificationLogs,
		logger:    container.Logger,
	}
}

// Run starts the consumer loop and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	reader := w.container.Kafka.NewReader(cfg.Kafka.NotificationsTopic, cfg.Kafka.ConsumerGroupID)
	defer reader.Close()

	w.logger.Info("notification worker started",
		zap.String("topic", cfg.Kafka.NotificationsTopic),
		zap.String("group", cfg.Kafka.ConsumerGroupID),
	)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("notification worker: fetch message", zap.Error(err))
			continue
		}

		if err := w.processMessage(ctx, reader, m); err != nil {
			w.logger.Error("notification worker: process", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, reader *kafka.Reader, m kafka.Message) error {
	var msg queue.NotificationMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		// Poison messages are committed so the partition keeps moving.
		_ = reader.CommitMessages(ctx, m)
		return fmt.Errorf("unmarshal notification: %w", err)
	}

	tracer := otel.Tracer("voiceagent.notifyworker")
	sctx, span := tracer.Start(ctx, "notification.deliver", trace.WithAttributes(
		attribute.String("notification.id", msg.ID.String()),
		attribute.String("appointment.id", msg.AppointmentID),
		attribute.String("channel", string(msg.Channel)),
	))
	defer span.End()

	deliverErr := w.deliver(sctx, msg)
	if deliverErr != nil {
		span.RecordError(deliverErr)
	}
	w.recordDelivery(sctx, msg, deliverErr)

	if err := reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset: %w", err)
	}
	return deliverErr
}

// deliver routes the message to its channel sender.
func (w *Worker) deliver(ctx context.Context, msg queue.NotificationMessage) error {
	switch msg.Channel {
	case domain.NotificationChannelSMS:
		return w.sms.Send(ctx, msg.Recipient, msg.Message)
	case domain.NotificationChannelEmail:
		return w.email.Send(ctx, msg.Recipient, msg.Message)
	default:
		return fmt.Errorf("unknown notification channel %q", msg.Channel)
	}
}

// recordDelivery writes the audit row. The worker keeps going when the write
// fails; delivery already happened or failed on its own terms.
func (w *Worker) recordDelivery(ctx context.Context, msg queue.NotificationMessage, deliverErr error) {
	status := domain.NotificationStatusSent
	errorMessage := ""
	if deliverErr != nil {
		status = domain.NotificationStatusFailed
		errorMessage = deliverErr.Error()
	}

	log := domain.NotificationLog{
		ID:            msg.ID,
		AppointmentID: msg.AppointmentID,
		Channel:       msg.Channel,
		Recipient:     msg.Recipient,
		Status:        status,
		ErrorMessage:  errorMessage,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.logs.Append(ctx, log); err != nil {
		w.logger.Error("notification log append failed",
			zap.String("appointment_id", msg.AppointmentID),
			zap.Error(err),
		)
	}
}
