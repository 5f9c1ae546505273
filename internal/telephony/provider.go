package telephony

import (
	"context"
	"time"
)

// CallRequest carries everything a provider needs to dial one appointment
// call into its room.
type CallRequest struct {
	AppointmentID string
	PhoneNumber   string
	RoomName      string
}

// Result captures the outcome of a telephony attempt.
type Result struct {
	Connected bool
	Duration  time.Duration
	Retryable bool
	Error     string
}

// Provider abstracts the telephony integration. An error return means the
// attempt could not be made; a Result with Connected=false means the callee
// did not pick up.
type Provider interface {
	PlaceCall(ctx context.Context, req CallRequest) (Result, error)
}
