package metrics

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRecordAccumulates(t *testing.T) {
	c := NewCollector(true)
	c.Record("watch_collect", 2*time.Second, StatusSuccess, "")
	c.Record("watch_collect", 4*time.Second, StatusSuccess, "")
	c.Record("watch_collect", 3*time.Second, StatusError, "boom")

	m := c.Stats("watch_collect")
	if m == nil {
		t.Fatal("expected stats for watch_collect")
	}
	if m.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", m.TotalCalls)
	}
	if m.SuccessCount != 2 || m.ErrorCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", m.SuccessCount, m.ErrorCount)
	}
	if m.AvgDuration != 3.0 {
		t.Errorf("AvgDuration = %v, want 3.0", m.AvgDuration)
	}
	if len(m.Errors) != 1 || m.Errors[0].Error != "boom" {
		t.Errorf("Errors = %v, want one entry 'boom'", m.Errors)
	}
	if m.LastExecution.IsZero() {
		t.Error("LastExecution not set")
	}
}

func TestStatsUnknownAgent(t *testing.T) {
	c := NewCollector(true)
	if m := c.Stats("never_ran"); m != nil {
		t.Errorf("expected nil, got %+v", m)
	}
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	c := NewCollector(false)
	c.Record("watch_collect", time.Second, StatusError, "boom")

	if m := c.Stats("watch_collect"); m != nil {
		t.Errorf("disabled collector stored %+v", m)
	}
	snap := c.HealthSnapshot()
	if snap.Status != "healthy" || snap.TotalCalls != 0 {
		t.Errorf("snapshot = %+v, want healthy and empty", snap)
	}
}

func TestErrorListBoundedAndTruncated(t *testing.T) {
	c := NewCollector(true)
	long := strings.Repeat("e", MaxErrorLength+200)
	for i := 0; i < 150; i++ {
		c.Record("agent", time.Millisecond, StatusError, fmt.Sprintf("%s-%d", long, i))
	}

	m := c.Stats("agent")
	if len(m.Errors) != MaxStoredErrors {
		t.Fatalf("stored %d errors, want %d", len(m.Errors), MaxStoredErrors)
	}
	for _, e := range m.Errors {
		if len(e.Error) > MaxErrorLength {
			t.Fatalf("stored error length %d exceeds %d", len(e.Error), MaxErrorLength)
		}
	}
	if m.ErrorCount != 150 {
		t.Errorf("ErrorCount = %d, want 150", m.ErrorCount)
	}
}

func TestHealthSnapshotThreshold(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		errors    int
		want      string
	}{
		{"no calls", 0, 0, "healthy"},
		{"all success", 10, 0, "healthy"},
		{"exactly at threshold", 9, 1, "healthy"},
		{"just above threshold", 8, 1, "degraded"},
		{"all errors", 0, 5, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(true)
			for i := 0; i < tt.successes; i++ {
				c.Record("agent", time.Millisecond, StatusSuccess, "")
			}
			for i := 0; i < tt.errors; i++ {
				c.Record("agent", time.Millisecond, StatusError, "x")
			}

			snap := c.HealthSnapshot()
			if snap.Status != tt.want {
				t.Errorf("Status = %q (rate %v), want %q", snap.Status, snap.ErrorRate, tt.want)
			}
		})
	}
}

func TestHealthSnapshotPerAgent(t *testing.T) {
	c := NewCollector(true)
	c.Record("a", time.Second, StatusSuccess, "")
	c.Record("a", time.Second, StatusError, "x")
	c.Record("b", 2*time.Second, StatusSuccess, "")

	snap := c.HealthSnapshot()
	if snap.TotalCalls != 3 || snap.TotalErrors != 1 {
		t.Errorf("totals = %d/%d, want 3/1", snap.TotalCalls, snap.TotalErrors)
	}
	a := snap.Agents["a"]
	if a.Calls != 2 || a.SuccessRate != 0.5 {
		t.Errorf("agent a = %+v", a)
	}
	b := snap.Agents["b"]
	if b.Calls != 1 || b.SuccessRate != 1.0 {
		t.Errorf("agent b = %+v", b)
	}
}

func TestStatsReturnsCopy(t *testing.T) {
	c := NewCollector(true)
	c.Record("a", time.Second, StatusError, "one")

	m := c.Stats("a")
	m.Errors[0].Error = "mutated"
	m.TotalCalls = 99

	fresh := c.Stats("a")
	if fresh.Errors[0].Error != "one" || fresh.TotalCalls != 1 {
		t.Errorf("internal state mutated through Stats copy: %+v", fresh)
	}
}
