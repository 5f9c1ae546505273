// Package scheduler runs call batches on a fixed interval, gated by a daily
// calling window so customers are never dialed at night.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/acarcay/voice-agent/internal/app"
)

const windowLayout = "15:04"

// Scheduler periodically triggers the orchestrator for due appointments.
type Scheduler struct {
	container *app.Container
}

// New constructs a scheduler.
func New(container *app.Container) *Scheduler {
	return &Scheduler{container: container}
}

// Run executes the scheduling loop until cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	cfg := s.container.Config.Scheduler

	window, err := parseWindow(cfg.WindowStart, cfg.WindowEnd)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx, window); err != nil && ctx.Err() == nil {
			s.container.Logger.Error("scheduler tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, window callingWindow) error {
	logger := s.container.Logger

	tracer := otel.Tracer("voiceagent.scheduler")
	sctx, span := tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	now := time.Now()
	if !window.contains(now) {
		span.SetAttributes(attribute.Bool("window.open", false))
		logger.Debug("outside calling window",
			zap.String("window_start", window.start.Format(windowLayout)),
			zap.String("window_end", window.end.Format(windowLayout)),
		)
		return nil
	}

	summary, err := s.container.Orchestrator().RunBatch(sctx, now)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.Int("batch.total", summary.Total),
		attribute.Int("batch.failed", summary.Failed),
	)
	return nil
}

// callingWindow is a daily wall-clock interval. A window whose end precedes
// its start spans midnight.
type callingWindow struct {
	start time.Time
	end   time.Time
}

func parseWindow(start, end string) (callingWindow, error) {
	startTime, err := time.Parse(windowLayout, start)
	if err != nil {
		return callingWindow{}, fmt.Errorf("invalid window start %q: %w", start, err)
	}
	endTime, err := time.Parse(windowLayout, end)
	if err != nil {
		return callingWindow{}, fmt.Errorf("invalid window end %q: %w", end, err)
	}
	return callingWindow{start: startTime, end: endTime}, nil
}

func (w callingWindow) contains(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	startMinutes := w.start.Hour()*60 + w.start.Minute()
	endMinutes := w.end.Hour()*60 + w.end.Minute()

	if startMinutes <= endMinutes {
		return minutes >= startMinutes && minutes < endMinutes
	}
	return minutes >= startMinutes || minutes < endMinutes
}
