package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
)

// CallLogStore persists call attempt records in Scylla, partitioned by
// appointment so an appointment's history reads from a single partition.
type CallLogStore struct {
	session *gocql.Session
}

// NewCallLogStore creates a new call log store.
func NewCallLogStore(session *gocql.Session) *CallLogStore {
	return &CallLogStore{session: session}
}

// Append inserts an immutable call attempt record and returns its id.
func (s *CallLogStore) Append(ctx context.Context, record domain.CallAttemptRecord) (uuid.UUID, error) {
	id := record.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	durationSec := int(record.Duration / time.Second)
	if err := s.session.Query(`INSERT INTO call_logs (appointment_id, log_id, room_name, success, attempts, duration_seconds, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.AppointmentID, id.String(), record.RoomName, record.Success, record.Attempts,
		durationSec, record.ErrorMessage, createdAt,
	).WithContext(ctx).Exec(); err != nil {
		return uuid.Nil, fmt.Errorf("call log store: insert: %w", err)
	}
	return id, nil
}

// ListByAppointment returns recent call logs for an appointment, newest
// first.
func (s *CallLogStore) ListByAppointment(ctx context.Context, appointmentID string, limit int) ([]domain.CallAttemptRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	iter := s.session.Query(`SELECT log_id, room_name, success, attempts, duration_seconds, error_message, created_at
		FROM call_logs WHERE appointment_id = ? LIMIT ?`, appointmentID, limit).WithContext(ctx).Iter()

	var (
		idStr       string
		roomName    string
		success     bool
		attempts    int
		durationSec int
		errMessage  string
		createdAt   time.Time
	)

	records := make([]domain.CallAttemptRecord, 0, limit)
	for iter.Scan(&idStr, &roomName, &success, &attempts, &durationSec, &errMessage, &createdAt) {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		records = append(records, domain.CallAttemptRecord{
			ID:            id,
			AppointmentID: appointmentID,
			RoomName:      roomName,
			Success:       success,
			Attempts:      attempts,
			Duration:      time.Duration(durationSec) * time.Second,
			ErrorMessage:  errMessage,
			CreatedAt:     createdAt,
		})
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("call log store: iter close: %w", err)
	}
	return records, nil
}
