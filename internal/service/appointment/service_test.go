package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/state/memory"
	apperrors "github.com/acarcay/voice-agent/pkg/errors"
)

type stubRepo struct {
	mu      sync.Mutex
	appts   map[string]*domain.Appointment
	gets    int
	changes []domain.StatusChange
}

func newStubRepo() *stubRepo {
	return &stubRepo{appts: make(map[string]*domain.Appointment)}
}

func (s *stubRepo) Create(ctx context.Context, appt *domain.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[appt.AppointmentID]; ok {
		return apperrors.ErrConflict
	}
	s.appts[appt.AppointmentID] = appt
	return nil
}

func (s *stubRepo) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	appt, ok := s.appts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *appt
	return &copied, nil
}

func (s *stubRepo) DueAppointments(ctx context.Context, asOf time.Time) ([]*domain.Appointment, error) {
	return nil, nil
}

func (s *stubRepo) UpdateStatus(ctx context.Context, id string, status domain.AppointmentStatus, rescheduledTo *time.Time, changedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	old := appt.Status
	appt.Status = status
	appt.RescheduledTo = rescheduledTo
	s.changes = append(s.changes, domain.StatusChange{
		AppointmentID: id,
		OldStatus:     &old,
		NewStatus:     status,
		ChangedBy:     changedBy,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}

func (s *stubRepo) ListStatusChanges(ctx context.Context, id string) ([]domain.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StatusChange(nil), s.changes...), nil
}

type stubCallLogs struct{}

func (stubCallLogs) Append(ctx context.Context, record domain.CallAttemptRecord) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (stubCallLogs) ListByAppointment(ctx context.Context, id string, limit int) ([]domain.CallAttemptRecord, error) {
	return nil, nil
}

type stubNotifLogs struct{}

func (stubNotifLogs) Append(ctx context.Context, log domain.NotificationLog) error { return nil }
func (stubNotifLogs) ListByAppointment(ctx context.Context, id string) ([]domain.NotificationLog, error) {
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *stubRepo, *memory.Store) {
	t.Helper()
	repo := newStubRepo()
	store := memory.NewStore(1000)
	svc := NewService(repo, stubCallLogs{}, stubNotifLogs{}, store, store, store, store, time.Hour)
	return svc, repo, store
}

func seed(t *testing.T, svc *Service) *domain.Appointment {
	t.Helper()
	appt, err := svc.Create(context.Background(), CreateInput{
		AppointmentID: "apt-1",
		CustomerName:  "Ada Lovelace",
		Phone:         "+15550001234",
		Email:         "ada@example.com",
		Date:          time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay:     "14:30",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return appt
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing id", CreateInput{CustomerName: "A", Phone: "+1", Date: time.Now(), TimeOfDay: "10:00"}},
		{"missing name", CreateInput{AppointmentID: "x", Phone: "+1", Date: time.Now(), TimeOfDay: "10:00"}},
		{"missing phone", CreateInput{AppointmentID: "x", CustomerName: "A", Date: time.Now(), TimeOfDay: "10:00"}},
		{"missing date", CreateInput{AppointmentID: "x", CustomerName: "A", Phone: "+1", TimeOfDay: "10:00"}},
		{"missing time", CreateInput{AppointmentID: "x", CustomerName: "A", Phone: "+1", Date: time.Now()}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.input); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestGetServesFromCacheAfterMiss(t *testing.T) {
	svc, repo, _ := newTestService(t)
	seed(t, svc)

	for i := 0; i < 3; i++ {
		appt, err := svc.Get(context.Background(), "apt-1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if appt.CustomerName != "Ada Lovelace" {
			t.Errorf("customer = %q", appt.CustomerName)
		}
	}

	if repo.gets != 1 {
		t.Errorf("repository reads = %d, want 1 (cache misses only)", repo.gets)
	}
}

func TestUpdateStatusInvalidatesCacheAndPublishes(t *testing.T) {
	svc, _, store := newTestService(t)
	seed(t, svc)

	// warm the cache
	if _, err := svc.Get(context.Background(), "apt-1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	store.SetSubscriberCount(2)
	appt, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AppointmentID: "apt-1",
		Status:        domain.AppointmentStatusConfirmed,
		ChangedBy:     "agent",
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if appt.Status != domain.AppointmentStatusConfirmed {
		t.Errorf("status = %q, want confirmed", appt.Status)
	}

	metrics, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics[domain.MetricConfirmed] != 1 {
		t.Errorf("confirmed metric = %d, want 1", metrics[domain.MetricConfirmed])
	}
}

func TestUpdateStatusRescheduledRequiresDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	seed(t, svc)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AppointmentID: "apt-1",
		Status:        domain.AppointmentStatusRescheduled,
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	newDate := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	appt, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AppointmentID: "apt-1",
		Status:        domain.AppointmentStatusRescheduled,
		RescheduledTo: &newDate,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if appt.RescheduledTo == nil || !appt.RescheduledTo.Equal(newDate) {
		t.Errorf("rescheduled_to = %v, want %v", appt.RescheduledTo, newDate)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	seed(t, svc)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		AppointmentID: "apt-1",
		Status:        "postponed",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestMetricsZeroFilled(t *testing.T) {
	svc, _, _ := newTestService(t)

	metrics, err := svc.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	for _, name := range domain.MetricNames() {
		if v, ok := metrics[name]; !ok || v != 0 {
			t.Errorf("metric %s = %d (present=%v), want 0", name, v, ok)
		}
	}
}
