package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/queue"
)

func TestConfirmationFallbackMessage(t *testing.T) {
	appt := &domain.Appointment{
		CustomerName: "Ada Lovelace",
		Date:         time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay:    "14:30",
	}

	message := ConfirmationFallbackMessage(appt)
	for _, want := range []string{"Ada Lovelace", "2026-09-01", "14:30"} {
		if !strings.Contains(message, want) {
			t.Errorf("message %q missing %q", message, want)
		}
	}
}

type captureDispatcher struct {
	messages []queue.NotificationMessage
}

func (c *captureDispatcher) Dispatch(ctx context.Context, msg queue.NotificationMessage) error {
	c.messages = append(c.messages, msg)
	return nil
}

func TestQueueNotifierEnqueuesPerChannel(t *testing.T) {
	dispatcher := &captureDispatcher{}
	notifier := NewQueueNotifier(dispatcher)

	if err := notifier.SendSMS(context.Background(), "apt-1", "+15550001234", "msg"); err != nil {
		t.Fatalf("sms: %v", err)
	}
	if err := notifier.SendEmail(context.Background(), "apt-1", "ada@example.com", "msg"); err != nil {
		t.Fatalf("email: %v", err)
	}

	if len(dispatcher.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(dispatcher.messages))
	}

	sms := dispatcher.messages[0]
	if sms.Channel != domain.NotificationChannelSMS || sms.Recipient != "+15550001234" {
		t.Errorf("sms message = %+v", sms)
	}
	email := dispatcher.messages[1]
	if email.Channel != domain.NotificationChannelEmail || email.Recipient != "ada@example.com" {
		t.Errorf("email message = %+v", email)
	}
	if sms.ID == email.ID {
		t.Error("messages must carry distinct ids")
	}
	if sms.AppointmentID != "apt-1" || email.AppointmentID != "apt-1" {
		t.Error("appointment id must be carried on every message")
	}
}
