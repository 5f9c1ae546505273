package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/rooms"
	"github.com/acarcay/voice-agent/internal/state"
	"github.com/acarcay/voice-agent/internal/state/memory"
	"github.com/acarcay/voice-agent/internal/telephony"
	"github.com/acarcay/voice-agent/pkg/logger"
)

type stubProvisioner struct {
	mu        sync.Mutex
	calls     int
	responses []error
	created   []string
}

func (s *stubProvisioner) CreateRoom(ctx context.Context, name string, metadata rooms.Metadata) (rooms.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.calls < len(s.responses) {
		err = s.responses[s.calls]
	}
	s.calls++
	if err != nil {
		return rooms.Room{}, err
	}
	s.created = append(s.created, name)
	return rooms.Room{Name: name, CreatedAt: time.Now()}, nil
}

func (s *stubProvisioner) DeleteRoom(ctx context.Context, name string) error { return nil }

type stubTelephony struct {
	mu       sync.Mutex
	attempts int
	// succeedOn is the 1-based attempt number that connects; 0 never
	// connects.
	succeedOn int
}

func (s *stubTelephony) PlaceCall(ctx context.Context, req telephony.CallRequest) (telephony.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.succeedOn > 0 && s.attempts >= s.succeedOn {
		return telephony.Result{Connected: true, Duration: 42 * time.Second}, nil
	}
	return telephony.Result{Connected: false, Retryable: true, Error: "no answer"}, nil
}

type stubAppointments struct {
	due []*domain.Appointment
	err error
}

func (s *stubAppointments) Create(ctx context.Context, appt *domain.Appointment) error { return nil }
func (s *stubAppointments) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	return nil, errors.New("not implemented")
}
func (s *stubAppointments) DueAppointments(ctx context.Context, asOf time.Time) ([]*domain.Appointment, error) {
	return s.due, s.err
}
func (s *stubAppointments) UpdateStatus(ctx context.Context, id string, status domain.AppointmentStatus, rescheduledTo *time.Time, changedBy string) error {
	return nil
}
func (s *stubAppointments) ListStatusChanges(ctx context.Context, id string) ([]domain.StatusChange, error) {
	return nil, nil
}

type stubCallLogs struct {
	mu      sync.Mutex
	records []domain.CallAttemptRecord
}

func (s *stubCallLogs) Append(ctx context.Context, record domain.CallAttemptRecord) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return uuid.New(), nil
}

func (s *stubCallLogs) ListByAppointment(ctx context.Context, id string, limit int) ([]domain.CallAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CallAttemptRecord(nil), s.records...), nil
}

type stubNotifier struct {
	mu     sync.Mutex
	sms    []string
	emails []string
}

func (s *stubNotifier) SendSMS(ctx context.Context, appointmentID, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sms = append(s.sms, phone)
	return nil
}

func (s *stubNotifier) SendEmail(ctx context.Context, appointmentID, address, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, address)
	return nil
}

// trackingLocker wraps the in-memory locker and records hold intervals so
// tests can assert that critical sections never interleave per resource.
type trackingLocker struct {
	inner *memory.Locker

	mu      sync.Mutex
	held    map[string]int
	maxSeen int
}

func newTrackingLocker() *trackingLocker {
	return &trackingLocker{
		inner: memory.NewLocker(time.Minute),
		held:  make(map[string]int),
	}
}

func (l *trackingLocker) Acquire(ctx context.Context, resource string, wait time.Duration) (*state.Lock, error) {
	lock, err := l.inner.Acquire(ctx, resource, wait)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.held[resource]++
	if l.held[resource] > l.maxSeen {
		l.maxSeen = l.held[resource]
	}
	l.mu.Unlock()
	return lock, nil
}

func (l *trackingLocker) Release(ctx context.Context, lock *state.Lock) {
	l.mu.Lock()
	l.held[lock.Resource]--
	l.mu.Unlock()
	l.inner.Release(ctx, lock)
}

func testAppointment(id string) *domain.Appointment {
	return &domain.Appointment{
		AppointmentID: id,
		CustomerName:  "Ada Lovelace",
		Phone:         "+15550001234",
		Email:         "ada@example.com",
		Date:          time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		TimeOfDay:     "14:30",
		Status:        domain.AppointmentStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func testConfig() Config {
	return Config{
		MaxRetries:         3,
		RetryDelay:         time.Millisecond,
		AttemptTimeout:     time.Second,
		LockWaitTimeout:    time.Second,
		InterCallDelay:     time.Millisecond,
		RoomCreateAttempts: 3,
		RoomBackoffBase:    time.Millisecond,
		RoomBackoffMax:     4 * time.Millisecond,
		CacheTTL:           time.Hour,
	}
}

func newTestOrchestrator(t *testing.T, provisioner rooms.Provisioner, calls telephony.Provider, appointments *stubAppointments) (*Orchestrator, *stubCallLogs, *memory.Store, *stubNotifier) {
	t.Helper()
	lg, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	store := memory.NewStore(1000)
	callLogs := &stubCallLogs{}
	notifier := &stubNotifier{}

	orch := New(testConfig(), provisioner, calls, appointments, callLogs,
		store, store, store, newTrackingLocker(), notifier, lg)
	return orch, callLogs, store, notifier
}

func TestProcessAppointmentSucceedsFirstAttempt(t *testing.T) {
	orch, callLogs, store, notifier := newTestOrchestrator(t,
		&stubProvisioner{}, &stubTelephony{succeedOn: 1}, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-1"))

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if len(notifier.sms) != 0 || len(notifier.emails) != 0 {
		t.Errorf("backup notifications sent on success: sms=%d email=%d", len(notifier.sms), len(notifier.emails))
	}
	if len(callLogs.records) != 1 || !callLogs.records[0].Success {
		t.Fatalf("call log records = %+v, want one successful record", callLogs.records)
	}

	metrics, err := store.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics[domain.MetricTotal] != 1 {
		t.Errorf("total metric = %d, want 1", metrics[domain.MetricTotal])
	}
	if metrics[domain.MetricNoResponse] != 0 {
		t.Errorf("no_response metric = %d, want 0", metrics[domain.MetricNoResponse])
	}
}

func TestProcessAppointmentSucceedsAfterRetries(t *testing.T) {
	phone := &stubTelephony{succeedOn: 3}
	orch, callLogs, _, notifier := newTestOrchestrator(t,
		&stubProvisioner{}, phone, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-2"))

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
	if phone.attempts != 3 {
		t.Errorf("provider dialed %d times, want 3", phone.attempts)
	}
	if len(notifier.sms) != 0 {
		t.Errorf("backup sms sent on eventual success")
	}
	if len(callLogs.records) != 1 {
		t.Fatalf("call log records = %d, want 1", len(callLogs.records))
	}
}

func TestProcessAppointmentExhaustsRetries(t *testing.T) {
	orch, callLogs, store, notifier := newTestOrchestrator(t,
		&stubProvisioner{}, &stubTelephony{}, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-3"))

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
	if result.Error != "Max retry exceeded" {
		t.Errorf("error = %q, want %q", result.Error, "Max retry exceeded")
	}
	if len(notifier.sms) != 1 {
		t.Errorf("sms notifications = %d, want exactly 1", len(notifier.sms))
	}
	if len(notifier.emails) != 1 {
		t.Errorf("email notifications = %d, want exactly 1", len(notifier.emails))
	}
	if len(callLogs.records) != 1 || callLogs.records[0].Success {
		t.Fatalf("call log records = %+v, want one failed record", callLogs.records)
	}

	metrics, err := store.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics[domain.MetricNoResponse] != 1 {
		t.Errorf("no_response metric = %d, want 1", metrics[domain.MetricNoResponse])
	}
}

func TestProcessAppointmentSkipsEmailWhenAbsent(t *testing.T) {
	orch, _, _, notifier := newTestOrchestrator(t,
		&stubProvisioner{}, &stubTelephony{}, &stubAppointments{})

	appt := testAppointment("apt-4")
	appt.Email = ""
	orch.ProcessAppointment(context.Background(), appt)

	if len(notifier.sms) != 1 {
		t.Errorf("sms notifications = %d, want 1", len(notifier.sms))
	}
	if len(notifier.emails) != 0 {
		t.Errorf("email notifications = %d, want 0", len(notifier.emails))
	}
}

func TestProcessAppointmentRoomExistsIsSuccess(t *testing.T) {
	provisioner := &stubProvisioner{responses: []error{rooms.ErrRoomExists}}
	orch, _, _, notifier := newTestOrchestrator(t,
		provisioner, &stubTelephony{succeedOn: 1}, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-5"))

	if !result.Success {
		t.Fatalf("expected success despite existing room, got %q", result.Error)
	}
	if provisioner.calls != 1 {
		t.Errorf("provisioner called %d times, want 1", provisioner.calls)
	}
	if len(notifier.sms) != 0 {
		t.Errorf("unexpected backup sms")
	}
}

func TestProcessAppointmentRetriesTransientRoomErrors(t *testing.T) {
	provisioner := &stubProvisioner{responses: []error{
		fmt.Errorf("dial: %w", rooms.ErrTransient),
		fmt.Errorf("dial: %w", rooms.ErrTransient),
	}}
	orch, _, _, _ := newTestOrchestrator(t,
		provisioner, &stubTelephony{succeedOn: 1}, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-6"))

	if !result.Success {
		t.Fatalf("expected success after transient retries, got %q", result.Error)
	}
	if provisioner.calls != 3 {
		t.Errorf("provisioner called %d times, want 3", provisioner.calls)
	}
}

func TestProcessAppointmentRoomCreationFailure(t *testing.T) {
	transient := fmt.Errorf("dial: %w", rooms.ErrTransient)
	provisioner := &stubProvisioner{responses: []error{transient, transient, transient}}
	phone := &stubTelephony{succeedOn: 1}
	orch, callLogs, _, notifier := newTestOrchestrator(t,
		provisioner, phone, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-7"))

	if result.Success {
		t.Fatal("expected failure when room creation exhausts retries")
	}
	if result.Error != "Room creation failed" {
		t.Errorf("error = %q, want %q", result.Error, "Room creation failed")
	}
	if phone.attempts != 0 {
		t.Errorf("provider dialed %d times, want 0", phone.attempts)
	}
	if len(notifier.sms) != 1 || len(notifier.emails) != 1 {
		t.Errorf("notifications sms=%d email=%d, want 1 each", len(notifier.sms), len(notifier.emails))
	}
	if len(callLogs.records) != 1 || callLogs.records[0].Attempts != 0 {
		t.Fatalf("call log records = %+v, want one zero-attempt record", callLogs.records)
	}
}

func TestProcessAppointmentDoesNotRetryPermanentRoomErrors(t *testing.T) {
	provisioner := &stubProvisioner{responses: []error{errors.New("401 unauthorized")}}
	orch, _, _, _ := newTestOrchestrator(t,
		provisioner, &stubTelephony{succeedOn: 1}, &stubAppointments{})

	result := orch.ProcessAppointment(context.Background(), testAppointment("apt-8"))

	if result.Success {
		t.Fatal("expected failure on permanent room error")
	}
	if provisioner.calls != 1 {
		t.Errorf("provisioner called %d times, want 1", provisioner.calls)
	}
}

func TestProcessAppointmentSerializesPerAppointment(t *testing.T) {
	locker := newTrackingLocker()
	lg, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := memory.NewStore(1000)
	orch := New(testConfig(), &stubProvisioner{}, &stubTelephony{succeedOn: 1},
		&stubAppointments{}, &stubCallLogs{}, store, store, store, locker,
		&stubNotifier{}, lg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orch.ProcessAppointment(context.Background(), testAppointment("apt-shared"))
		}()
	}
	wg.Wait()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	if locker.maxSeen > 1 {
		t.Errorf("lock held concurrently %d times for the same appointment", locker.maxSeen)
	}
}

func TestRunBatchSummary(t *testing.T) {
	appointments := &stubAppointments{due: []*domain.Appointment{
		testAppointment("apt-a"),
		testAppointment("apt-b"),
	}}
	phone := &stubTelephony{succeedOn: 4}
	orch, _, _, _ := newTestOrchestrator(t, &stubProvisioner{}, phone, appointments)

	summary, err := orch.RunBatch(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Total != 2 {
		t.Errorf("total = %d, want 2", summary.Total)
	}
	// First appointment exhausts attempts 1-3; the shared stub connects on
	// dial 4, which is the second appointment's first attempt.
	if summary.Failed != 1 || summary.Successful != 1 {
		t.Errorf("successful=%d failed=%d, want 1 each", summary.Successful, summary.Failed)
	}
	if summary.SuccessRate() != 50 {
		t.Errorf("success rate = %v, want 50", summary.SuccessRate())
	}
}

func TestRunBatchPropagatesFetchError(t *testing.T) {
	appointments := &stubAppointments{err: errors.New("connection reset")}
	orch, _, _, _ := newTestOrchestrator(t, &stubProvisioner{}, &stubTelephony{}, appointments)

	if _, err := orch.RunBatch(context.Background(), time.Now()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
}
