package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/queue"
	"github.com/acarcay/voice-agent/pkg/logger"
)

type stubSender struct {
	sent []string
	err  error
}

func (s *stubSender) Send(ctx context.Context, recipient, message string) error {
	s.sent = append(s.sent, recipient)
	return s.err
}

type stubLogRepo struct {
	logs []domain.NotificationLog
	err  error
}

func (s *stubLogRepo) Append(ctx context.Context, log domain.NotificationLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

func (s *stubLogRepo) ListByAppointment(ctx context.Context, appointmentID string) ([]domain.NotificationLog, error) {
	return s.logs, nil
}

func newTestWorker(t *testing.T, sms, email *stubSender, logs *stubLogRepo) *Worker {
	t.Helper()
	lg, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &Worker{sms: sms, email: email, logs: logs, logger: lg}
}

func testMessage(channel domain.NotificationChannel, recipient string) queue.NotificationMessage {
	return queue.NotificationMessage{
		ID:            uuid.New(),
		AppointmentID: "apt-1",
		Channel:       channel,
		Recipient:     recipient,
		Message:       "We could not reach you to confirm your appointment.",
		EnqueuedAt:    time.Now().UTC(),
	}
}

func TestDeliverRoutesByChannel(t *testing.T) {
	sms := &stubSender{}
	email := &stubSender{}
	w := newTestWorker(t, sms, email, &stubLogRepo{})

	if err := w.deliver(context.Background(), testMessage(domain.NotificationChannelSMS, "+15550001234")); err != nil {
		t.Fatalf("sms deliver: %v", err)
	}
	if err := w.deliver(context.Background(), testMessage(domain.NotificationChannelEmail, "ada@example.com")); err != nil {
		t.Fatalf("email deliver: %v", err)
	}

	if len(sms.sent) != 1 || sms.sent[0] != "+15550001234" {
		t.Errorf("sms sent = %v", sms.sent)
	}
	if len(email.sent) != 1 || email.sent[0] != "ada@example.com" {
		t.Errorf("email sent = %v", email.sent)
	}
}

func TestDeliverRejectsUnknownChannel(t *testing.T) {
	w := newTestWorker(t, &stubSender{}, &stubSender{}, &stubLogRepo{})

	if err := w.deliver(context.Background(), testMessage("fax", "+15550001234")); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestRecordDeliveryStatus(t *testing.T) {
	logs := &stubLogRepo{}
	w := newTestWorker(t, &stubSender{}, &stubSender{}, logs)

	w.recordDelivery(context.Background(), testMessage(domain.NotificationChannelSMS, "+15550001234"), nil)
	w.recordDelivery(context.Background(), testMessage(domain.NotificationChannelEmail, "ada@example.com"), errors.New("mailbox full"))

	if len(logs.logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs.logs))
	}
	if logs.logs[0].Status != domain.NotificationStatusSent || logs.logs[0].ErrorMessage != "" {
		t.Errorf("first log = %+v, want sent with no error", logs.logs[0])
	}
	if logs.logs[1].Status != domain.NotificationStatusFailed || logs.logs[1].ErrorMessage != "mailbox full" {
		t.Errorf("second log = %+v, want failed with error message", logs.logs[1])
	}
}
