package membership

import (
	"testing"
	"time"
)

func TestShouldResetUsageMissingTimestamps(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-5 * 24 * time.Hour)
	end := now.Add(25 * 24 * time.Hour)
	if !ShouldResetUsage(nil, nil, now) {
		t.Fatalf("missing timestamps must reset")
	}
	if !ShouldResetUsage(&start, nil, now) {
		t.Fatalf("missing period end must reset")
	}
	if !ShouldResetUsage(nil, &end, now) {
		t.Fatalf("missing period start must reset")
	}
}

func TestShouldResetUsageWithinPeriod(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-25 * 24 * time.Hour)
	end := now.Add(30 * 24 * time.Hour)
	if ShouldResetUsage(&start, &end, now) {
		t.Fatalf("counters inside a live period must not reset")
	}
}

func TestShouldResetUsageElapsedPeriod(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-10 * 24 * time.Hour)
	end := now.Add(-time.Hour)
	if !ShouldResetUsage(&start, &end, now) {
		t.Fatalf("elapsed billing period must reset")
	}
}

func TestShouldResetUsageStaleStart(t *testing.T) {
	now := time.Now().UTC()
	start := now.Add(-40 * 24 * time.Hour)
	end := now.Add(30 * 24 * time.Hour)
	if !ShouldResetUsage(&start, &end, now) {
		t.Fatalf("period start older than a month must reset")
	}
}
