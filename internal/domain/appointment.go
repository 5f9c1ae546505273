package domain

import (
	"fmt"
	"time"
)

// AppointmentStatus enumerates lifecycle states of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "pending"
	AppointmentStatusConfirmed   AppointmentStatus = "confirmed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
)

// ParseAppointmentStatus validates a status string.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled,
		AppointmentStatusRescheduled, AppointmentStatusCompleted:
		return AppointmentStatus(s), nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Valid reports whether the status is a known lifecycle state.
func (s AppointmentStatus) Valid() bool {
	_, err := ParseAppointmentStatus(string(s))
	return err == nil
}

// Appointment models a scheduled customer visit awaiting confirmation.
// AppointmentID is the external business key; rows are never hard-deleted,
// cancellation is a status transition.
type Appointment struct {
	AppointmentID string
	CustomerName  string
	Phone         string
	Email         string
	Date          time.Time
	TimeOfDay     string
	Status        AppointmentStatus
	// RescheduledTo carries the new date when Status is rescheduled.
	RescheduledTo *time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// StatusChange is the audit record emitted by every status transition.
type StatusChange struct {
	AppointmentID string
	OldStatus     *AppointmentStatus
	NewStatus     AppointmentStatus
	ChangedBy     string
	Notes         string
	CreatedAt     time.Time
}
