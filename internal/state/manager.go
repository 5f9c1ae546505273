package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/acarcay/voice-agent/internal/domain"
)

const statusUpdateChannel = "appointment_updates"

// Manager is the Redis-backed implementation of Cache, EventLog, Metrics and
// Publisher. All workers share the same backing instance, which is what makes
// cached snapshots and counters visible across processes.
type Manager struct {
	client      *redis.Client
	eventLogMax int64
}

// NewManager constructs a state manager over an established redis client.
func NewManager(client *redis.Client, eventLogMax int64) *Manager {
	if eventLogMax <= 0 {
		eventLogMax = 1000
	}
	return &Manager{client: client, eventLogMax: eventLogMax}
}

func cacheKey(id string) string    { return "appointment:" + id }
func streamKey(id string) string   { return "conversation:" + id }
func metricKey(name string) string { return "metrics:calls:" + name }

// CacheAppointment stores a snapshot of the appointment under a TTL.
func (m *Manager) CacheAppointment(ctx context.Context, id string, appt *domain.Appointment, ttl time.Duration) error {
	data, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("state: marshal appointment: %w", err)
	}
	if err := m.client.Set(ctx, cacheKey(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("state: cache appointment: %w", err)
	}
	return nil
}

// CachedAppointment returns the cached snapshot, or ok=false on a miss.
func (m *Manager) CachedAppointment(ctx context.Context, id string) (*domain.Appointment, bool, error) {
	data, err := m.client.Get(ctx, cacheKey(id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: get cached appointment: %w", err)
	}
	var appt domain.Appointment
	if err := json.Unmarshal(data, &appt); err != nil {
		return nil, false, fmt.Errorf("state: unmarshal cached appointment: %w", err)
	}
	return &appt, true, nil
}

// Invalidate drops the cached snapshot, typically after a status change.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	if err := m.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("state: invalidate appointment: %w", err)
	}
	return nil
}

// AppendEvent appends to the appointment's stream, trimming to the bound so
// the oldest entries are evicted first.
func (m *Manager) AppendEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("state: marshal event payload: %w", err)
	}

	id, err := m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(appointmentID),
		MaxLen: m.eventLogMax,
		Approx: false,
		Values: map[string]any{
			"event_type": eventType,
			"data":       string(data),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("state: append event: %w", err)
	}
	return id, nil
}

// RecentEvents returns the most recent count events in chronological order.
func (m *Manager) RecentEvents(ctx context.Context, appointmentID string, count int64) ([]domain.ConversationEvent, error) {
	entries, err := m.client.XRevRangeN(ctx, streamKey(appointmentID), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("state: read events: %w", err)
	}

	events := make([]domain.ConversationEvent, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		event := domain.ConversationEvent{
			ID:            entry.ID,
			AppointmentID: appointmentID,
		}
		if v, ok := entry.Values["event_type"].(string); ok {
			event.Type = v
		}
		if v, ok := entry.Values["timestamp"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				event.Timestamp = ts
			}
		}
		if v, ok := entry.Values["data"].(string); ok {
			payload := map[string]any{}
			if err := json.Unmarshal([]byte(v), &payload); err == nil {
				event.Payload = payload
			}
		}
		events = append(events, event)
	}
	return events, nil
}

// IncrementMetric bumps a counter and returns the new value.
func (m *Manager) IncrementMetric(ctx context.Context, name string, delta int64) (int64, error) {
	value, err := m.client.IncrBy(ctx, metricKey(name), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("state: increment metric %s: %w", name, err)
	}
	return value, nil
}

// Metrics reads the full enumerated counter set; absent counters are zero.
func (m *Manager) Metrics(ctx context.Context) (map[string]int64, error) {
	names := domain.MetricNames()
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = metricKey(name)
	}

	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("state: read metrics: %w", err)
	}

	metrics := make(map[string]int64, len(names))
	for i, name := range names {
		metrics[name] = 0
		if raw, ok := values[i].(string); ok {
			var v int64
			if _, err := fmt.Sscanf(raw, "%d", &v); err == nil {
				metrics[name] = v
			}
		}
	}
	return metrics, nil
}

// PublishStatusUpdate broadcasts a status change and returns the number of
// subscribers that received it.
func (m *Manager) PublishStatusUpdate(ctx context.Context, appointmentID string, status domain.AppointmentStatus, changedBy string) (int64, error) {
	message, err := json.Marshal(map[string]any{
		"appointment_id": appointmentID,
		"status":         string(status),
		"changed_by":     changedBy,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, fmt.Errorf("state: marshal status update: %w", err)
	}

	subscribers, err := m.client.Publish(ctx, statusUpdateChannel, message).Result()
	if err != nil {
		return 0, fmt.Errorf("state: publish status update: %w", err)
	}
	return subscribers, nil
}
