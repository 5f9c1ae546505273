package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	apperrors "github.com/acarcay/voice-agent/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// AppointmentRepository manages appointment persistence and the status audit
// trail.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	Get(ctx context.Context, appointmentID string) (*domain.Appointment, error)
	// DueAppointments returns pending appointments scheduled on the given
	// date, ordered by time of day.
	DueAppointments(ctx context.Context, asOf time.Time) ([]*domain.Appointment, error)
	// UpdateStatus transitions the appointment and writes the audit row in
	// the same transaction. rescheduledTo is only consulted for the
	// rescheduled status.
	UpdateStatus(ctx context.Context, appointmentID string, status domain.AppointmentStatus, rescheduledTo *time.Time, changedBy string) error
	ListStatusChanges(ctx context.Context, appointmentID string) ([]domain.StatusChange, error)
}

// CallLogStore persists call attempt records.
type CallLogStore interface {
	Append(ctx context.Context, record domain.CallAttemptRecord) (uuid.UUID, error)
	ListByAppointment(ctx context.Context, appointmentID string, limit int) ([]domain.CallAttemptRecord, error)
}

// NotificationLogRepository records backup notification deliveries.
type NotificationLogRepository interface {
	Append(ctx context.Context, log domain.NotificationLog) error
	ListByAppointment(ctx context.Context, appointmentID string) ([]domain.NotificationLog, error)
}
