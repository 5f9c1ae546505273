package state

import (
	"context"
	"time"

	"github.com/acarcay/voice-agent/internal/domain"
)

// Cache is a short-TTL appointment snapshot cache. Misses are not errors.
type Cache interface {
	CacheAppointment(ctx context.Context, id string, appt *domain.Appointment, ttl time.Duration) error
	CachedAppointment(ctx context.Context, id string) (*domain.Appointment, bool, error)
	Invalidate(ctx context.Context, id string) error
}

// EventLog is a per-appointment bounded append-only log. Once the bound is
// exceeded the oldest entries are evicted first.
type EventLog interface {
	AppendEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) (string, error)
	RecentEvents(ctx context.Context, appointmentID string, count int64) ([]domain.ConversationEvent, error)
}

// Metrics exposes monotonic call-outcome counters over the fixed set in
// domain.MetricNames. Unseen counters read as zero.
type Metrics interface {
	IncrementMetric(ctx context.Context, name string, delta int64) (int64, error)
	Metrics(ctx context.Context) (map[string]int64, error)
}

// Publisher broadcasts status updates to other workers. Delivery is
// best-effort; missed messages are not replayed.
type Publisher interface {
	PublishStatusUpdate(ctx context.Context, appointmentID string, status domain.AppointmentStatus, changedBy string) (int64, error)
}

// Lock is a held distributed lock. The token identifies the holder so that an
// expired lock re-acquired by another worker is never released by mistake.
type Lock struct {
	Resource   string
	Token      string
	AcquiredAt time.Time
	TTL        time.Duration
}

// Locker is a cross-process mutual-exclusion primitive keyed by resource
// name. Acquire blocks up to wait and returns errors.ErrLockTimeout when the
// lock cannot be obtained in time. Held locks auto-expire after their TTL so
// a crashed holder cannot wedge the resource.
type Locker interface {
	Acquire(ctx context.Context, resource string, wait time.Duration) (*Lock, error)
	// Release is best-effort and never fails on an already-expired lock.
	Release(ctx context.Context, lock *Lock)
}
