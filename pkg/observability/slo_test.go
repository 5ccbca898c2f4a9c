package observability

import (
	"testing"
	"time"
)

func TestSLOSetObjective(t *testing.T) {
	tracker := NewSLOTracker(Objective{
		Operation:   "effect.http",
		LatencyP99:  500 * time.Millisecond,
		SuccessRate: 0.999,
		Window:      24 * time.Hour,
	})

	status, err := tracker.Status("effect.http")
	if err != nil {
		t.Fatal(err)
	}
	if !status.InCompliance {
		t.Fatal("expected compliance with no observations")
	}
}

func TestSLOInCompliance(t *testing.T) {
	tracker := NewSLOTracker(Objective{
		Operation:   "effect.key_value",
		LatencyP99:  1000 * time.Millisecond,
		SuccessRate: 0.99,
	})

	for i := 0; i < 100; i++ {
		tracker.Record(SLOObservation{Operation: "effect.key_value", Latency: 100 * time.Millisecond, Success: true})
	}

	status, _ := tracker.Status("effect.key_value")
	if !status.InCompliance {
		t.Fatal("expected in compliance")
	}
	if status.CurrentSuccess != 1.0 {
		t.Fatalf("expected 100%% success rate, got %.2f", status.CurrentSuccess)
	}
	if status.ObservationCount != 100 {
		t.Fatalf("observation count = %d", status.ObservationCount)
	}
}

func TestSLOOutOfCompliance(t *testing.T) {
	tracker := NewSLOTracker(Objective{
		Operation:   "effect.store",
		LatencyP99:  500 * time.Millisecond,
		SuccessRate: 0.99,
	})

	// 90% success is below the 99% target
	for i := 0; i < 90; i++ {
		tracker.Record(SLOObservation{Operation: "effect.store", Latency: 100 * time.Millisecond, Success: true})
	}
	for i := 0; i < 10; i++ {
		tracker.Record(SLOObservation{Operation: "effect.store", Latency: 100 * time.Millisecond, Success: false})
	}

	status, _ := tracker.Status("effect.store")
	if status.InCompliance {
		t.Fatal("expected out of compliance")
	}
}

func TestSLOLatencyBreach(t *testing.T) {
	tracker := NewSLOTracker(Objective{Operation: "effect.http", LatencyP99: 50 * time.Millisecond})
	for i := 0; i < 10; i++ {
		tracker.Record(SLOObservation{Operation: "effect.http", Latency: 200 * time.Millisecond, Success: true})
	}
	status, _ := tracker.Status("effect.http")
	if status.InCompliance {
		t.Fatal("expected latency breach")
	}
	if status.CurrentP99 != 200 {
		t.Fatalf("p99 = %v", status.CurrentP99)
	}
}

func TestSLOBurnRate(t *testing.T) {
	tracker := NewSLOTracker(Objective{
		Operation:   "effect.sse",
		LatencyP99:  1000 * time.Millisecond,
		SuccessRate: 0.99, // 1% error budget
	})

	// 5% error rate burns at 5x
	for i := 0; i < 95; i++ {
		tracker.Record(SLOObservation{Operation: "effect.sse", Latency: 10 * time.Millisecond, Success: true})
	}
	for i := 0; i < 5; i++ {
		tracker.Record(SLOObservation{Operation: "effect.sse", Latency: 10 * time.Millisecond, Success: false})
	}

	status, _ := tracker.Status("effect.sse")
	if status.BurnRate < 4.0 {
		t.Fatalf("expected high burn rate, got %.2f", status.BurnRate)
	}
	if status.ErrorBudgetLeft != 0 {
		t.Fatalf("budget left = %.2f", status.ErrorBudgetLeft)
	}
}

func TestSLOWindowEviction(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewSLOTracker(Objective{Operation: "effect.http", SuccessRate: 0.5, Window: time.Minute}).
		WithClock(func() time.Time { return now })

	tracker.Record(SLOObservation{Operation: "effect.http", Success: false})
	now = now.Add(2 * time.Minute)
	tracker.Record(SLOObservation{Operation: "effect.http", Success: true})

	status, _ := tracker.Status("effect.http")
	if status.ObservationCount != 1 || !status.InCompliance {
		t.Fatalf("status = %+v", status)
	}
}

func TestSLOIgnoresUntrackedOperations(t *testing.T) {
	tracker := NewSLOTracker()
	tracker.Record(SLOObservation{Operation: "effect.http", Success: true})
	if _, err := tracker.Status("effect.http"); err == nil {
		t.Fatal("expected error for missing objective")
	}
	if got := tracker.Statuses(); len(got) != 0 {
		t.Fatalf("statuses = %+v", got)
	}
}

func TestSLOStatusesSorted(t *testing.T) {
	tracker := NewSLOTracker(Objective{Operation: "effect.store"}, Objective{Operation: "effect.http"})
	got := tracker.Statuses()
	if len(got) != 2 || got[0].Operation != "effect.http" || got[1].Operation != "effect.store" {
		t.Fatalf("statuses = %+v", got)
	}
}
