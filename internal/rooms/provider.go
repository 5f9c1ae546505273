package rooms

import (
	"context"
	"errors"
	"time"

	"github.com/acarcay/voice-agent/internal/domain"
)

// ErrRoomExists reports that a room with the requested name already exists.
// Callers treat this as success: room names are deterministic per
// appointment, so a second run lands on the same room.
var ErrRoomExists = errors.New("room already exists")

// ErrTransient marks connectivity failures that are worth retrying.
var ErrTransient = errors.New("transient room service error")

const confirmationTask = "confirm_appointment"

// Room is a handle to a provisioned communication session.
type Room struct {
	Name      string
	CreatedAt time.Time
}

// Metadata is the wire contract handed to the voice-session layer. Field
// names and the task value are fixed; the agent on the other side keys off
// them.
type Metadata struct {
	AppointmentID string `json:"appointment_id"`
	CustomerName  string `json:"customer_name"`
	Time          string `json:"time"`
	Task          string `json:"task"`
	CreatedAt     string `json:"created_at"`
}

// NewMetadata builds the session metadata for an appointment call.
func NewMetadata(appt *domain.Appointment, now time.Time) Metadata {
	return Metadata{
		AppointmentID: appt.AppointmentID,
		CustomerName:  appt.CustomerName,
		Time:          appt.TimeOfDay,
		Task:          confirmationTask,
		CreatedAt:     now.UTC().Format(time.RFC3339),
	}
}

// RoomName derives the deterministic room name for an appointment.
func RoomName(appointmentID string) string {
	return "confirmation_call_" + appointmentID
}

// Provisioner abstracts the room service integration.
type Provisioner interface {
	// CreateRoom provisions a named room. Returns ErrRoomExists when the
	// name is already taken and ErrTransient (wrapped) on connectivity
	// failures.
	CreateRoom(ctx context.Context, name string, metadata Metadata) (Room, error)
	DeleteRoom(ctx context.Context, name string) error
}
