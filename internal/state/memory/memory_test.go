package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/acarcay/voice-agent/internal/domain"
	apperrors "github.com/acarcay/voice-agent/pkg/errors"
)

func TestEventLogEvictsOldestBeyondCap(t *testing.T) {
	store := NewStore(1000)
	ctx := context.Background()

	for i := 0; i < 1001; i++ {
		payload := map[string]any{"seq": i}
		if _, err := store.AppendEvent(ctx, "apt-1", "call_attempt", payload); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := store.RecentEvents(ctx, "apt-1", 2000)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 1000 {
		t.Fatalf("events = %d, want 1000", len(events))
	}
	// Entry 0 was evicted; the log starts at the second-oldest entry.
	if events[0].Payload["seq"] != 1 {
		t.Errorf("oldest surviving seq = %v, want 1", events[0].Payload["seq"])
	}
	if events[len(events)-1].Payload["seq"] != 1000 {
		t.Errorf("newest seq = %v, want 1000", events[len(events)-1].Payload["seq"])
	}
}

func TestRecentEventsChronologicalTail(t *testing.T) {
	store := NewStore(1000)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := store.AppendEvent(ctx, "apt-1", "call_attempt", map[string]any{"seq": i}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := store.RecentEvents(ctx, "apt-1", 3)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	for i, want := range []int{7, 8, 9} {
		if events[i].Payload["seq"] != want {
			t.Errorf("events[%d].seq = %v, want %d", i, events[i].Payload["seq"], want)
		}
	}
}

func TestCacheExpiry(t *testing.T) {
	store := NewStore(10)
	ctx := context.Background()
	appt := &domain.Appointment{AppointmentID: "apt-1", CustomerName: "Ada"}

	if err := store.CacheAppointment(ctx, "apt-1", appt, 20*time.Millisecond); err != nil {
		t.Fatalf("cache: %v", err)
	}

	if _, ok, _ := store.CachedAppointment(ctx, "apt-1"); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := store.CachedAppointment(ctx, "apt-1"); ok {
		t.Fatal("expected cache miss after expiry")
	}
}

func TestIncrementMetricAccumulates(t *testing.T) {
	store := NewStore(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.IncrementMetric(ctx, domain.MetricTotal, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	metrics, err := store.Metrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if metrics[domain.MetricTotal] != 3 {
		t.Errorf("total = %d, want 3", metrics[domain.MetricTotal])
	}
}

func TestLockerMutualExclusion(t *testing.T) {
	locker := NewLocker(time.Minute)
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "call:apt-1", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := locker.Acquire(ctx, "call:apt-1", 30*time.Millisecond); err == nil {
		t.Fatal("second acquire should time out while lock is held")
	} else if !apperrors.Is(err, apperrors.ErrLockTimeout) {
		t.Fatalf("err = %v, want lock timeout", err)
	}

	locker.Release(ctx, first)
	second, err := locker.Acquire(ctx, "call:apt-1", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	locker.Release(ctx, second)
}

func TestLockerIndependentResources(t *testing.T) {
	locker := NewLocker(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resource := fmt.Sprintf("call:apt-%d", i)
		if _, err := locker.Acquire(ctx, resource, 10*time.Millisecond); err != nil {
			t.Errorf("acquire %s: %v", resource, err)
		}
	}
}
