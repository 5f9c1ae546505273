// Package appointment exposes appointment lifecycle operations shared by the
// HTTP API.
package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/repository"
	"github.com/acarcay/voice-agent/internal/state"
	apperrors "github.com/acarcay/voice-agent/pkg/errors"
)

// Service coordinates appointment persistence with the Redis-backed cache,
// event log, metrics, and status update channel.
type Service struct {
	repo      repository.AppointmentRepository
	callLogs  repository.CallLogStore
	notifLogs repository.NotificationLogRepository
	cache     state.Cache
	events    state.EventLog
	metrics   state.Metrics
	publisher state.Publisher
	cacheTTL  time.Duration
}

// NewService constructs an appointment service.
func NewService(
	repo repository.AppointmentRepository,
	callLogs repository.CallLogStore,
	notifLogs repository.NotificationLogRepository,
	cache state.Cache,
	events state.EventLog,
	metrics state.Metrics,
	publisher state.Publisher,
	cacheTTL time.Duration,
) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Service{
		repo:      repo,
		callLogs:  callLogs,
		notifLogs: notifLogs,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		publisher: publisher,
		cacheTTL:  cacheTTL,
	}
}

// CreateInput captures appointment creation parameters.
type CreateInput struct {
	AppointmentID string
	CustomerName  string
	Phone         string
	Email         string
	Date          time.Time
	TimeOfDay     string
}

// Create registers a new pending appointment.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Appointment, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	appt := &domain.Appointment{
		AppointmentID: input.AppointmentID,
		CustomerName:  strings.TrimSpace(input.CustomerName),
		Phone:         strings.TrimSpace(input.Phone),
		Email:         strings.TrimSpace(input.Email),
		Date:          input.Date,
		TimeOfDay:     input.TimeOfDay,
		Status:        domain.AppointmentStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("appointment service: create: %w", err)
	}
	return appt, nil
}

// Get reads an appointment, serving from the cache when fresh and falling
// back to Postgres on a miss. Cache failures degrade to a direct read.
func (s *Service) Get(ctx context.Context, appointmentID string) (*domain.Appointment, error) {
	if appointmentID == "" {
		return nil, fmt.Errorf("appointment service: %w: appointment id is required", apperrors.ErrValidation)
	}

	if appt, ok, err := s.cache.CachedAppointment(ctx, appointmentID); err == nil && ok {
		return appt, nil
	}

	appt, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment service: get: %w", err)
	}

	_ = s.cache.CacheAppointment(ctx, appointmentID, appt, s.cacheTTL)
	return appt, nil
}

// UpdateStatusInput captures a status transition.
type UpdateStatusInput struct {
	AppointmentID string
	Status        domain.AppointmentStatus
	RescheduledTo *time.Time
	ChangedBy     string
}

// UpdateStatus transitions the appointment, invalidates its cache entry,
// publishes the change, and bumps the matching call outcome counter.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*domain.Appointment, error) {
	if input.AppointmentID == "" {
		return nil, fmt.Errorf("appointment service: %w: appointment id is required", apperrors.ErrValidation)
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("appointment service: %w: unknown status %q", apperrors.ErrValidation, input.Status)
	}
	if input.Status == domain.AppointmentStatusRescheduled && input.RescheduledTo == nil {
		return nil, fmt.Errorf("appointment service: %w: rescheduled status requires a new date", apperrors.ErrValidation)
	}
	changedBy := input.ChangedBy
	if changedBy == "" {
		changedBy = "api"
	}

	if err := s.repo.UpdateStatus(ctx, input.AppointmentID, input.Status, input.RescheduledTo, changedBy); err != nil {
		return nil, fmt.Errorf("appointment service: update status: %w", err)
	}

	// Stale cache entries would mask the transition until TTL expiry.
	_ = s.cache.Invalidate(ctx, input.AppointmentID)
	if _, err := s.publisher.PublishStatusUpdate(ctx, input.AppointmentID, input.Status, changedBy); err != nil {
		return nil, fmt.Errorf("appointment service: publish status: %w", err)
	}
	if metric := metricForStatus(input.Status); metric != "" {
		_, _ = s.metrics.IncrementMetric(ctx, metric, 1)
	}

	return s.Get(ctx, input.AppointmentID)
}

// StatusChanges returns the audit trail for one appointment.
func (s *Service) StatusChanges(ctx context.Context, appointmentID string) ([]domain.StatusChange, error) {
	changes, err := s.repo.ListStatusChanges(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment service: status changes: %w", err)
	}
	return changes, nil
}

// Events returns the most recent conversation events, oldest first.
func (s *Service) Events(ctx context.Context, appointmentID string, count int64) ([]domain.ConversationEvent, error) {
	if count <= 0 {
		count = 50
	}
	events, err := s.events.RecentEvents(ctx, appointmentID, count)
	if err != nil {
		return nil, fmt.Errorf("appointment service: events: %w", err)
	}
	return events, nil
}

// CallLogs returns recorded call attempts for one appointment.
func (s *Service) CallLogs(ctx context.Context, appointmentID string, limit int) ([]domain.CallAttemptRecord, error) {
	records, err := s.callLogs.ListByAppointment(ctx, appointmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("appointment service: call logs: %w", err)
	}
	return records, nil
}

// NotificationLogs returns backup notification deliveries for one
// appointment.
func (s *Service) NotificationLogs(ctx context.Context, appointmentID string) ([]domain.NotificationLog, error) {
	logs, err := s.notifLogs.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment service: notification logs: %w", err)
	}
	return logs, nil
}

// Metrics returns every call counter, zero-filled for counters never
// incremented.
func (s *Service) Metrics(ctx context.Context) (map[string]int64, error) {
	counters, err := s.metrics.Metrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointment service: metrics: %w", err)
	}
	for _, name := range domain.MetricNames() {
		if _, ok := counters[name]; !ok {
			counters[name] = 0
		}
	}
	return counters, nil
}

func validateCreateInput(input CreateInput) error {
	switch {
	case strings.TrimSpace(input.AppointmentID) == "":
		return fmt.Errorf("appointment service: %w: appointment id is required", apperrors.ErrValidation)
	case strings.TrimSpace(input.CustomerName) == "":
		return fmt.Errorf("appointment service: %w: customer name is required", apperrors.ErrValidation)
	case strings.TrimSpace(input.Phone) == "":
		return fmt.Errorf("appointment service: %w: phone is required", apperrors.ErrValidation)
	case input.Date.IsZero():
		return fmt.Errorf("appointment service: %w: date is required", apperrors.ErrValidation)
	case strings.TrimSpace(input.TimeOfDay) == "":
		return fmt.Errorf("appointment service: %w: time is required", apperrors.ErrValidation)
	}
	return nil
}

func metricForStatus(status domain.AppointmentStatus) string {
	switch status {
	case domain.AppointmentStatusConfirmed:
		return domain.MetricConfirmed
	case domain.AppointmentStatusCancelled:
		return domain.MetricCancelled
	case domain.AppointmentStatusRescheduled:
		return domain.MetricRescheduled
	default:
		return ""
	}
}
