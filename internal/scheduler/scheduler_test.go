package scheduler

import (
	"testing"
	"time"
)

func TestCallingWindowContains(t *testing.T) {
	window, err := parseWindow("09:00", "20:00")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}

	morning := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if !window.contains(morning) {
		t.Errorf("expected %v inside 09:00-20:00", morning)
	}

	night := time.Date(2026, 9, 1, 21, 30, 0, 0, time.UTC)
	if window.contains(night) {
		t.Errorf("expected %v outside 09:00-20:00", night)
	}

	boundary := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	if window.contains(boundary) {
		t.Errorf("window end is exclusive, %v should be outside", boundary)
	}
}

func TestCallingWindowSpanningMidnight(t *testing.T) {
	window, err := parseWindow("22:00", "02:00")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}

	night := time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)
	if !window.contains(night) {
		t.Errorf("expected %v inside cross-midnight window", night)
	}

	earlyMorning := time.Date(2026, 9, 2, 1, 0, 0, 0, time.UTC)
	if !window.contains(earlyMorning) {
		t.Errorf("expected %v inside cross-midnight window", earlyMorning)
	}

	afternoon := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	if window.contains(afternoon) {
		t.Errorf("expected %v outside cross-midnight window", afternoon)
	}
}

func TestParseWindowRejectsBadFormat(t *testing.T) {
	if _, err := parseWindow("9am", "5pm"); err == nil {
		t.Fatal("expected parse error for non HH:MM input")
	}
}
