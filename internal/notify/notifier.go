package notify

import (
	"context"
	"fmt"

	"github.com/acarcay/voice-agent/internal/domain"
)

// Notifier sends backup notifications when a voice call could not be placed.
// Both methods are fire-and-forget from the orchestrator's point of view:
// errors are logged by the caller, never propagated into the call result.
type Notifier interface {
	SendSMS(ctx context.Context, appointmentID, phone, message string) error
	SendEmail(ctx context.Context, appointmentID, address, message string) error
}

// SMSSender delivers a text message. Implemented by channel providers
// consumed in the notify worker.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// EmailSender delivers an email body.
type EmailSender interface {
	Send(ctx context.Context, address, message string) error
}

// ConfirmationFallbackMessage is the text sent over both channels when the
// confirmation call failed.
func ConfirmationFallbackMessage(appt *domain.Appointment) string {
	return fmt.Sprintf(
		"Hello %s, we could not reach you by phone. Please confirm your appointment on %s at %s by replying to this message.",
		appt.CustomerName, appt.Date.Format("2006-01-02"), appt.TimeOfDay,
	)
}
