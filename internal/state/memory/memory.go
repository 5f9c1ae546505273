// Package memory provides in-process implementations of the state interfaces
// for tests and local development. They mirror the Redis semantics closely
// enough that orchestrator behaviour is identical, but offer no cross-process
// guarantees.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/state"
	apperrors "github.com/acarcay/voice-agent/pkg/errors"
)

// Store implements state.Cache, state.EventLog, state.Metrics and
// state.Publisher in memory.
type Store struct {
	mu          sync.Mutex
	cache       map[string]cacheEntry
	events      map[string][]domain.ConversationEvent
	metrics     map[string]int64
	subscribers int64
	eventLogMax int
	seq         int64
}

type cacheEntry struct {
	appt      domain.Appointment
	expiresAt time.Time
}

// NewStore creates a store bounding each event log at eventLogMax entries.
func NewStore(eventLogMax int) *Store {
	if eventLogMax <= 0 {
		eventLogMax = 1000
	}
	return &Store{
		cache:       make(map[string]cacheEntry),
		events:      make(map[string][]domain.ConversationEvent),
		metrics:     make(map[string]int64),
		eventLogMax: eventLogMax,
	}
}

func (s *Store) CacheAppointment(ctx context.Context, id string, appt *domain.Appointment, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[id] = cacheEntry{appt: *appt, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *Store) CachedAppointment(ctx context.Context, id string) (*domain.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[id]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.cache, id)
		return nil, false, nil
	}
	appt := entry.appt
	return &appt, true, nil
}

func (s *Store) Invalidate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, id)
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	event := domain.ConversationEvent{
		ID:            fmt.Sprintf("%d-0", s.seq),
		AppointmentID: appointmentID,
		Type:          eventType,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}

	log := append(s.events[appointmentID], event)
	if len(log) > s.eventLogMax {
		log = log[len(log)-s.eventLogMax:]
	}
	s.events[appointmentID] = log
	return event.ID, nil
}

func (s *Store) RecentEvents(ctx context.Context, appointmentID string, count int64) ([]domain.ConversationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[appointmentID]
	if int64(len(log)) > count {
		log = log[int64(len(log))-count:]
	}
	out := make([]domain.ConversationEvent, len(log))
	copy(out, log)
	return out, nil
}

func (s *Store) IncrementMetric(ctx context.Context, name string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[name] += delta
	return s.metrics[name], nil
}

func (s *Store) Metrics(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(domain.MetricNames()))
	for _, name := range domain.MetricNames() {
		out[name] = s.metrics[name]
	}
	return out, nil
}

func (s *Store) PublishStatusUpdate(ctx context.Context, appointmentID string, status domain.AppointmentStatus, changedBy string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers, nil
}

// SetSubscriberCount fixes the count reported by PublishStatusUpdate.
func (s *Store) SetSubscriberCount(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = n
}

// Locker implements state.Locker for a single process.
type Locker struct {
	mu   sync.Mutex
	held map[string]heldLock
	ttl  time.Duration
}

type heldLock struct {
	token     string
	expiresAt time.Time
}

// NewLocker creates an in-process locker with the given auto-expiry TTL.
func NewLocker(ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Locker{held: make(map[string]heldLock), ttl: ttl}
}

func (l *Locker) Acquire(ctx context.Context, resource string, wait time.Duration) (*state.Lock, error) {
	deadline := time.Now().Add(wait)
	token := uuid.NewString()

	for {
		l.mu.Lock()
		current, ok := l.held[resource]
		if !ok || time.Now().After(current.expiresAt) {
			l.held[resource] = heldLock{token: token, expiresAt: time.Now().Add(l.ttl)}
			l.mu.Unlock()
			return &state.Lock{Resource: resource, Token: token, AcquiredAt: time.Now().UTC(), TTL: l.ttl}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("memory: lock %s: %w", resource, apperrors.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *Locker) Release(ctx context.Context, lock *state.Lock) {
	if lock == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.held[lock.Resource]; ok && current.token == lock.Token {
		delete(l.held, lock.Resource)
	}
}
