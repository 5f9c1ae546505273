package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/repository"
)

// AppointmentRepository implements repository.AppointmentRepository using
// PostgreSQL.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs a new repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `appointment_id, customer_name, phone, email,
	appointment_date, appointment_time, status, rescheduled_to, created_at, updated_at`

// Create inserts a new appointment.
func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	q := `INSERT INTO appointments (
		appointment_id, customer_name, phone, email,
		appointment_date, appointment_time, status, rescheduled_to, created_at
	) VALUES (
		:appointment_id, :customer_name, :phone, :email,
		:appointment_date, :appointment_time, :status, :rescheduled_to, :created_at
	)`

	params := map[string]any{
		"appointment_id":   appt.AppointmentID,
		"customer_name":    appt.CustomerName,
		"phone":            appt.Phone,
		"email":            appt.Email,
		"appointment_date": appt.Date,
		"appointment_time": appt.TimeOfDay,
		"status":           appt.Status,
		"rescheduled_to":   appt.RescheduledTo,
		"created_at":       appt.CreatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("appointment repo: insert: %w", err)
	}
	return nil
}

// Get fetches an appointment by its business key.
func (r *AppointmentRepository) Get(ctx context.Context, appointmentID string) (*domain.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE appointment_id = $1`

	row := r.db.QueryRowxContext(ctx, q, appointmentID)
	var record appointmentRecord
	if err := row.StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("appointment repo: get: %w", err)
	}

	appt := record.toDomain()
	return &appt, nil
}

// DueAppointments returns pending appointments scheduled on the given date.
func (r *AppointmentRepository) DueAppointments(ctx context.Context, asOf time.Time) ([]*domain.Appointment, error) {
	q := `SELECT ` + appointmentColumns + `
	  FROM appointments
	 WHERE appointment_date = $1 AND status = $2
	 ORDER BY appointment_time ASC`

	rows, err := r.db.QueryxContext(ctx, q, asOf.Format("2006-01-02"), domain.AppointmentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("appointment repo: due appointments: %w", err)
	}
	defer rows.Close()

	var results []*domain.Appointment
	for rows.Next() {
		var record appointmentRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("appointment repo: scan: %w", err)
		}
		appt := record.toDomain()
		results = append(results, &appt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment repo: rows err: %w", err)
	}
	return results, nil
}

// UpdateStatus transitions the appointment and records the audit row in one
// transaction.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, appointmentID string, status domain.AppointmentStatus, rescheduledTo *time.Time, changedBy string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("appointment repo: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var oldStatus string
	if err := tx.QueryRowxContext(ctx,
		`SELECT status FROM appointments WHERE appointment_id = $1 FOR UPDATE`, appointmentID,
	).Scan(&oldStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("appointment repo: read status: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE appointments SET status = $1, rescheduled_to = $2, updated_at = CURRENT_TIMESTAMP WHERE appointment_id = $3`,
		status, rescheduledTo, appointmentID,
	); err != nil {
		return fmt.Errorf("appointment repo: update status: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO appointment_changes (appointment_id, old_status, new_status, changed_by) VALUES ($1, $2, $3, $4)`,
		appointmentID, oldStatus, status, changedBy,
	); err != nil {
		return fmt.Errorf("appointment repo: insert change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("appointment repo: commit: %w", err)
	}
	return nil
}

// ListStatusChanges returns the audit trail, oldest first.
func (r *AppointmentRepository) ListStatusChanges(ctx context.Context, appointmentID string) ([]domain.StatusChange, error) {
	q := `SELECT appointment_id, old_status, new_status, changed_by, COALESCE(notes, '') AS notes, created_at
	  FROM appointment_changes WHERE appointment_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryxContext(ctx, q, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment repo: list changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.StatusChange
	for rows.Next() {
		var record statusChangeRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("appointment repo: scan change: %w", err)
		}
		changes = append(changes, record.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointment repo: rows err: %w", err)
	}
	return changes, nil
}

type appointmentRecord struct {
	AppointmentID string         `db:"appointment_id"`
	CustomerName  string         `db:"customer_name"`
	Phone         string         `db:"phone"`
	Email         sql.NullString `db:"email"`
	Date          time.Time      `db:"appointment_date"`
	TimeOfDay     string         `db:"appointment_time"`
	Status        string         `db:"status"`
	RescheduledTo sql.NullTime   `db:"rescheduled_to"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     sql.NullTime   `db:"updated_at"`
}

func (r appointmentRecord) toDomain() domain.Appointment {
	appt := domain.Appointment{
		AppointmentID: r.AppointmentID,
		CustomerName:  r.CustomerName,
		Phone:         r.Phone,
		Email:         r.Email.String,
		Date:          r.Date,
		TimeOfDay:     r.TimeOfDay,
		Status:        domain.AppointmentStatus(r.Status),
		CreatedAt:     r.CreatedAt,
	}
	if r.RescheduledTo.Valid {
		t := r.RescheduledTo.Time
		appt.RescheduledTo = &t
	}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time
		appt.UpdatedAt = &t
	}
	return appt
}

type statusChangeRecord struct {
	AppointmentID string         `db:"appointment_id"`
	OldStatus     sql.NullString `db:"old_status"`
	NewStatus     string         `db:"new_status"`
	ChangedBy     string         `db:"changed_by"`
	Notes         string         `db:"notes"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r statusChangeRecord) toDomain() domain.StatusChange {
	change := domain.StatusChange{
		AppointmentID: r.AppointmentID,
		NewStatus:     domain.AppointmentStatus(r.NewStatus),
		ChangedBy:     r.ChangedBy,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt,
	}
	if r.OldStatus.Valid {
		old := domain.AppointmentStatus(r.OldStatus.String)
		change.OldStatus = &old
	}
	return change
}
