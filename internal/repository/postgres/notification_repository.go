package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acarcay/voice-agent/internal/domain"
)

// NotificationLogRepository stores backup notification delivery outcomes.
type NotificationLogRepository struct {
	db *sqlx.DB
}

// NewNotificationLogRepository constructs a new repository.
func NewNotificationLogRepository(db *sqlx.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Append inserts a notification log row.
func (r *NotificationLogRepository) Append(ctx context.Context, log domain.NotificationLog) error {
	q := `INSERT INTO notification_logs (
		id, appointment_id, notification_type, recipient, status, error_message, created_at
	) VALUES (:id, :appointment_id, :notification_type, :recipient, :status, :error_message, :created_at)`

	params := map[string]any{
		"id":                log.ID,
		"appointment_id":    log.AppointmentID,
		"notification_type": log.Channel,
		"recipient":         log.Recipient,
		"status":            log.Status,
		"error_message":     nullable(log.ErrorMessage),
		"created_at":        log.CreatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("notification repo: insert: %w", err)
	}
	return nil
}

// ListByAppointment returns notification logs for one appointment.
func (r *NotificationLogRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]domain.NotificationLog, error) {
	q := `SELECT id, appointment_id, notification_type, recipient, status,
	       COALESCE(error_message, '') AS error_message, created_at
	  FROM notification_logs WHERE appointment_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryxContext(ctx, q, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("notification repo: list: %w", err)
	}
	defer rows.Close()

	var logs []domain.NotificationLog
	for rows.Next() {
		var record notificationRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("notification repo: scan: %w", err)
		}
		logs = append(logs, record.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notification repo: rows err: %w", err)
	}
	return logs, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type notificationRecord struct {
	ID            uuid.UUID `db:"id"`
	AppointmentID string    `db:"appointment_id"`
	Channel       string    `db:"notification_type"`
	Recipient     string    `db:"recipient"`
	Status        string    `db:"status"`
	ErrorMessage  string    `db:"error_message"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r notificationRecord) toDomain() domain.NotificationLog {
	return domain.NotificationLog{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		Channel:       domain.NotificationChannel(r.Channel),
		Recipient:     r.Recipient,
		Status:        domain.NotificationStatus(r.Status),
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
	}
}
