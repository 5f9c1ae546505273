// Package mock provides stand-in channel senders used until the real
// Twilio/SMTP integrations are wired up.
package mock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/acarcay/voice-agent/pkg/logger"
)

// SMSSender logs the message instead of delivering it.
type SMSSender struct {
	logger *logger.Logger
}

// NewSMSSender constructs a logging SMS sender.
func NewSMSSender(lg *logger.Logger) *SMSSender {
	return &SMSSender{logger: lg}
}

// Send simulates SMS delivery.
func (s *SMSSender) Send(ctx context.Context, phone, message string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Millisecond):
	}
	s.logger.Info("sms sent",
		zap.String("phone", logger.MaskPhone(phone)),
		zap.Int("length", len(message)),
	)
	return nil
}

// EmailSender logs the message instead of delivering it.
type EmailSender struct {
	logger *logger.Logger
}

// NewEmailSender constructs a logging email sender.
func NewEmailSender(lg *logger.Logger) *EmailSender {
	return &EmailSender{logger: lg}
}

// Send simulates email delivery.
func (s *EmailSender) Send(ctx context.Context, address, message string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Millisecond):
	}
	s.logger.Info("email sent",
		zap.String("address", address),
		zap.Int("length", len(message)),
	)
	return nil
}
