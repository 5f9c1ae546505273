package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acarcay/voice-agent/internal/config"
	"github.com/acarcay/voice-agent/internal/domain"
	"github.com/acarcay/voice-agent/internal/notify"
	"github.com/acarcay/voice-agent/internal/repository"
	"github.com/acarcay/voice-agent/internal/retry"
	"github.com/acarcay/voice-agent/internal/rooms"
	"github.com/acarcay/voice-agent/internal/state"
	"github.com/acarcay/voice-agent/internal/telephony"
	apperrors "github.com/acarcay/voice-agent/pkg/errors"
	"github.com/acarcay/voice-agent/pkg/logger"
)

const (
	errRoomCreationFailed = "Room creation failed"
	errMaxRetryExceeded   = "Max retry exceeded"
	errLockTimedOut       = "Lock acquisition timed out"
)

// Config tunes one orchestration pass.
type Config struct {
	MaxRetries         int
	RetryDelay         time.Duration
	AttemptTimeout     time.Duration
	LockWaitTimeout    time.Duration
	InterCallDelay     time.Duration
	RoomCreateAttempts int
	RoomBackoffBase    time.Duration
	RoomBackoffMax     time.Duration
	CacheTTL           time.Duration
}

// ConfigFrom maps application configuration onto orchestrator settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxRetries:         cfg.Orchestrator.MaxRetries,
		RetryDelay:         cfg.Orchestrator.RetryDelay,
		AttemptTimeout:     cfg.Orchestrator.AttemptTimeout,
		LockWaitTimeout:    cfg.Orchestrator.LockWaitTimeout,
		InterCallDelay:     cfg.Orchestrator.InterCallDelay,
		RoomCreateAttempts: cfg.Room.CreateAttempts,
		RoomBackoffBase:    cfg.Room.BackoffBase,
		RoomBackoffMax:     cfg.Room.BackoffMax,
		CacheTTL:           cfg.Cache.AppointmentTTL,
	}
}

// Orchestrator places confirmation calls for due appointments: it provisions
// a room, dials under a per-appointment distributed lock with bounded
// retries, records the outcome, and escalates to backup notifications when
// the call could not be completed. Multiple instances may run concurrently;
// the lock serializes work per appointment, not globally.
type Orchestrator struct {
	cfg          Config
	rooms        rooms.Provisioner
	calls        telephony.Provider
	appointments repository.AppointmentRepository
	callLogs     repository.CallLogStore
	cache        state.Cache
	events       state.EventLog
	metrics      state.Metrics
	locker       state.Locker
	notifier     notify.Notifier
	logger       *logger.Logger
}

// New wires an orchestrator from its collaborators.
func New(
	cfg Config,
	roomProvisioner rooms.Provisioner,
	callProvider telephony.Provider,
	appointments repository.AppointmentRepository,
	callLogs repository.CallLogStore,
	cache state.Cache,
	events state.EventLog,
	metrics state.Metrics,
	locker state.Locker,
	notifier notify.Notifier,
	lg *logger.Logger,
) *Orchestrator {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.LockWaitTimeout <= 0 {
		cfg.LockWaitTimeout = 60 * time.Second
	}
	if cfg.RoomCreateAttempts <= 0 {
		cfg.RoomCreateAttempts = 3
	}
	if cfg.RoomBackoffBase <= 0 {
		cfg.RoomBackoffBase = time.Second
	}
	if cfg.RoomBackoffMax <= 0 {
		cfg.RoomBackoffMax = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Orchestrator{
		cfg:          cfg,
		rooms:        roomProvisioner,
		calls:        callProvider,
		appointments: appointments,
		callLogs:     callLogs,
		cache:        cache,
		events:       events,
		metrics:      metrics,
		locker:       locker,
		notifier:     notifier,
		logger:       lg,
	}
}

// Summary aggregates one batch run.
type Summary struct {
	Total      int
	Successful int
	Failed     int
	Results    []domain.CallResult
}

// SuccessRate returns the percentage of successful calls.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// RunBatch fetches due appointments and processes them one by one. Only an
// infrastructure failure while fetching aborts the batch; individual call
// failures are part of the summary.
func (o *Orchestrator) RunBatch(ctx context.Context, asOf time.Time) (Summary, error) {
	tracer := otel.Tracer("voiceagent.orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.batch")
	defer span.End()

	appointments, err := o.appointments.DueAppointments(ctx, asOf)
	if err != nil {
		span.RecordError(err)
		return Summary{}, fmt.Errorf("orchestrator: fetch due appointments: %w", err)
	}
	span.SetAttributes(attribute.Int("appointments.count", len(appointments)))

	if len(appointments) == 0 {
		o.logger.Warn("no due appointments", zap.Time("as_of", asOf))
		return Summary{}, nil
	}
	o.logger.Info("appointments found", zap.Int("count", len(appointments)), zap.Time("as_of", asOf))

	summary := Summary{Results: make([]domain.CallResult, 0, len(appointments))}
	for i, appt := range appointments {
		o.logger.Info("processing appointment",
			zap.Int("index", i+1),
			zap.Int("total", len(appointments)),
			zap.String("appointment_id", appt.AppointmentID),
		)

		result := o.ProcessAppointment(ctx, appt)
		summary.Results = append(summary.Results, result)
		summary.Total++
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}

		if i < len(appointments)-1 {
			if err := sleepCtx(ctx, o.cfg.InterCallDelay); err != nil {
				o.logger.Warn("batch interrupted", zap.Error(err))
				break
			}
		}
	}

	o.logSummary(summary)
	return summary, nil
}

func (o *Orchestrator) logSummary(summary Summary) {
	o.logger.Info("batch complete",
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Float64("success_rate_pct", summary.SuccessRate()),
	)
	for _, result := range summary.Results {
		if result.Success {
			continue
		}
		o.logger.Warn("call failed",
			zap.String("appointment_id", result.AppointmentID),
			zap.Int("attempts", result.Attempts),
			zap.String("error", result.Error),
		)
	}
}

// ProcessAppointment runs the full call sequence for one appointment. It
// never returns an error: every failure is folded into the result, and
// backup notifications have already been dispatched for failed results.
func (o *Orchestrator) ProcessAppointment(ctx context.Context, appt *domain.Appointment) domain.CallResult {
	tracer := otel.Tracer("voiceagent.orchestrator")
	ctx, span := tracer.Start(ctx, "orchestrator.appointment", trace.WithAttributes(
		attribute.String("appointment.id", appt.AppointmentID),
	))
	defer span.End()

	if _, err := o.metrics.IncrementMetric(ctx, domain.MetricTotal, 1); err != nil {
		o.logger.Warn("metric increment failed", zap.Error(err))
	}
	if err := o.cache.CacheAppointment(ctx, appt.AppointmentID, appt, o.cfg.CacheTTL); err != nil {
		o.logger.Warn("appointment cache failed", zap.Error(err))
	}

	roomName, err := o.createRoom(ctx, appt)
	if err != nil {
		span.RecordError(err)
		result := domain.CallResult{
			AppointmentID: appt.AppointmentID,
			Error:         errRoomCreationFailed,
			Timestamp:     time.Now().UTC(),
		}
		o.recordOutcome(ctx, appt, roomName, result, 0)
		o.sendBackupNotifications(ctx, appt)
		return result
	}

	result := o.placeCallWithRetry(ctx, appt, roomName)
	if !result.Success {
		span.SetAttributes(attribute.Int("call.attempts", result.Attempts))
		o.sendBackupNotifications(ctx, appt)
	}
	return result
}

// createRoom provisions the deterministic room, retrying transient
// connectivity failures with doubling backoff. An existing room is success.
func (o *Orchestrator) createRoom(ctx context.Context, appt *domain.Appointment) (string, error) {
	roomName := rooms.RoomName(appt.AppointmentID)
	metadata := rooms.NewMetadata(appt, time.Now())

	policy := retry.ExponentialBackoff(o.cfg.RoomCreateAttempts, o.cfg.RoomBackoffBase, o.cfg.RoomBackoffMax)
	policy.RetryIf = func(err error) bool { return errors.Is(err, rooms.ErrTransient) }

	_, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		_, createErr := o.rooms.CreateRoom(ctx, roomName, metadata)
		if errors.Is(createErr, rooms.ErrRoomExists) {
			o.logger.Info("room already exists", zap.String("room", roomName))
			return nil
		}
		return createErr
	})
	if err != nil {
		o.logger.Error("room creation failed",
			zap.String("room", roomName),
			zap.String("appointment_id", appt.AppointmentID),
			zap.Error(err),
		)
		return roomName, err
	}

	o.logger.Info("room created", zap.String("room", roomName), zap.String("appointment_id", appt.AppointmentID))
	o.appendEvent(ctx, appt.AppointmentID, "room_created", map[string]any{"room": roomName})
	return roomName, nil
}

// placeCallWithRetry serializes call placement per appointment behind the
// distributed lock and dials with a fixed delay between attempts. The lock
// is released on every exit path.
func (o *Orchestrator) placeCallWithRetry(ctx context.Context, appt *domain.Appointment, roomName string) domain.CallResult {
	lock, err := o.locker.Acquire(ctx, "call:"+appt.AppointmentID, o.cfg.LockWaitTimeout)
	if err != nil {
		message := errLockTimedOut
		if !errors.Is(err, apperrors.ErrLockTimeout) {
			message = err.Error()
		}
		o.logger.Error("lock acquisition failed",
			zap.String("appointment_id", appt.AppointmentID),
			zap.Error(err),
		)
		result := domain.CallResult{
			AppointmentID: appt.AppointmentID,
			Error:         message,
			Timestamp:     time.Now().UTC(),
		}
		o.recordOutcome(ctx, appt, roomName, result, 0)
		return result
	}
	defer o.locker.Release(ctx, lock)

	var lastDuration time.Duration
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		o.logger.Info("call attempt",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.cfg.MaxRetries),
			zap.String("phone", logger.MaskPhone(appt.Phone)),
		)
		o.appendEvent(ctx, appt.AppointmentID, "call_attempt", map[string]any{
			"attempt": attempt,
			"room":    roomName,
		})

		callResult, callErr := o.placeCall(ctx, appt, roomName)
		lastDuration = callResult.Duration

		if callErr == nil && callResult.Connected {
			result := domain.CallResult{
				Success:       true,
				AppointmentID: appt.AppointmentID,
				Attempts:      attempt,
				Timestamp:     time.Now().UTC(),
			}
			o.recordOutcome(ctx, appt, roomName, result, callResult.Duration)
			o.appendEvent(ctx, appt.AppointmentID, "call_ended", map[string]any{
				"success":  true,
				"attempts": attempt,
			})
			return result
		}

		if callErr != nil {
			o.logger.Error("call error", zap.Int("attempt", attempt), zap.Error(callErr))
		}

		if attempt < o.cfg.MaxRetries {
			o.logger.Info("retrying call", zap.Duration("delay", o.cfg.RetryDelay))
			if err := sleepCtx(ctx, o.cfg.RetryDelay); err != nil {
				break
			}
		}
	}

	o.logger.Error("call failed after all attempts",
		zap.String("appointment_id", appt.AppointmentID),
		zap.Int("attempts", o.cfg.MaxRetries),
	)
	if _, err := o.metrics.IncrementMetric(ctx, domain.MetricNoResponse, 1); err != nil {
		o.logger.Warn("metric increment failed", zap.Error(err))
	}

	result := domain.CallResult{
		AppointmentID: appt.AppointmentID,
		Attempts:      o.cfg.MaxRetries,
		Error:         errMaxRetryExceeded,
		Timestamp:     time.Now().UTC(),
	}
	o.recordOutcome(ctx, appt, roomName, result, lastDuration)
	o.appendEvent(ctx, appt.AppointmentID, "call_ended", map[string]any{
		"success":  false,
		"attempts": o.cfg.MaxRetries,
	})
	return result
}

// placeCall runs a single attempt under its own timeout so an unresponsive
// provider cannot stall the worker.
func (o *Orchestrator) placeCall(ctx context.Context, appt *domain.Appointment, roomName string) (telephony.Result, error) {
	if o.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AttemptTimeout)
		defer cancel()
	}

	return o.calls.PlaceCall(ctx, telephony.CallRequest{
		AppointmentID: appt.AppointmentID,
		PhoneNumber:   appt.Phone,
		RoomName:      roomName,
	})
}

// recordOutcome writes the immutable call attempt record. Failures to write
// are logged; the in-memory result still stands.
func (o *Orchestrator) recordOutcome(ctx context.Context, appt *domain.Appointment, roomName string, result domain.CallResult, duration time.Duration) {
	record := domain.CallAttemptRecord{
		AppointmentID: appt.AppointmentID,
		RoomName:      roomName,
		Success:       result.Success,
		Attempts:      result.Attempts,
		Duration:      duration,
		ErrorMessage:  result.Error,
		CreatedAt:     result.Timestamp,
	}
	if _, err := o.callLogs.Append(ctx, record); err != nil {
		o.logger.Error("call log append failed",
			zap.String("appointment_id", appt.AppointmentID),
			zap.Error(err),
		)
	}
}

// sendBackupNotifications dispatches SMS and email concurrently. Channel
// errors are swallowed after logging; escalation never fails the pass.
func (o *Orchestrator) sendBackupNotifications(ctx context.Context, appt *domain.Appointment) {
	message := notify.ConfirmationFallbackMessage(appt)
	o.logger.Info("sending backup notifications", zap.String("appointment_id", appt.AppointmentID))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := o.notifier.SendSMS(ctx, appt.AppointmentID, appt.Phone, message); err != nil {
			o.logger.Warn("sms notification failed",
				zap.String("appointment_id", appt.AppointmentID),
				zap.Error(err),
			)
		}
	}()

	if appt.Email != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.notifier.SendEmail(ctx, appt.AppointmentID, appt.Email, message); err != nil {
				o.logger.Warn("email notification failed",
					zap.String("appointment_id", appt.AppointmentID),
					zap.Error(err),
				)
			}
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) appendEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	if _, err := o.events.AppendEvent(ctx, appointmentID, eventType, payload); err != nil {
		o.logger.Warn("event append failed",
			zap.String("appointment_id", appointmentID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
