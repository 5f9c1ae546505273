package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallAttemptRecord captures the outcome of one complete call sequence for an
// appointment. Written once, after success or after the final retry.
type CallAttemptRecord struct {
	ID            uuid.UUID
	AppointmentID string
	RoomName      string
	Success       bool
	Attempts      int
	Duration      time.Duration
	ErrorMessage  string
	CreatedAt     time.Time
}

// CallResult is the value returned by the orchestrator for one appointment.
type CallResult struct {
	Success       bool
	AppointmentID string
	Attempts      int
	Error         string
	Timestamp     time.Time
}

// ConversationEvent is one entry in the per-appointment bounded event log.
type ConversationEvent struct {
	ID            string
	AppointmentID string
	Type          string
	Payload       map[string]any
	Timestamp     time.Time
}

// NotificationChannel identifies a backup notification delivery path.
type NotificationChannel string

const (
	NotificationChannelSMS   NotificationChannel = "sms"
	NotificationChannelEmail NotificationChannel = "email"
)

// NotificationStatus enumerates delivery outcomes for backup notifications.
type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusPending NotificationStatus = "pending"
)

// NotificationLog records a backup SMS/email delivery attempt.
type NotificationLog struct {
	ID            uuid.UUID
	AppointmentID string
	Channel       NotificationChannel
	Recipient     string
	Status        NotificationStatus
	ErrorMessage  string
	CreatedAt     time.Time
}

// Call metric counter names. The metrics store reads exactly this set.
const (
	MetricConfirmed   = "confirmed"
	MetricCancelled   = "cancelled"
	MetricRescheduled = "rescheduled"
	MetricNoResponse  = "no_response"
	MetricTotal       = "total"
)

// MetricNames lists every counter tracked by the metrics store.
func MetricNames() []string {
	return []string{MetricConfirmed, MetricCancelled, MetricRescheduled, MetricNoResponse, MetricTotal}
}
