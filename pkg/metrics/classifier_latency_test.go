package metrics

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(1000)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	stats := lt.Stats()
	if stats.Count != 100 {
		t.Fatalf("Count = %d, want 100", stats.Count)
	}
	if stats.Min != time.Millisecond {
		t.Errorf("Min = %v, want 1ms", stats.Min)
	}
	if stats.Max != 100*time.Millisecond {
		t.Errorf("Max = %v, want 100ms", stats.Max)
	}
	if stats.P50 < 45*time.Millisecond || stats.P50 > 55*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", stats.P50)
	}
	if stats.P99 < 95*time.Millisecond {
		t.Errorf("P99 = %v, want >=95ms", stats.P99)
	}
}

func TestLatencyTrackerSlidingWindow(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 0; i < 50; i++ {
		lt.Record(time.Millisecond)
	}
	stats := lt.Stats()
	if stats.Samples > 10 {
		t.Errorf("Samples = %d, window is 10", stats.Samples)
	}
	if stats.Samples == 0 {
		t.Error("window emptied out")
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := NewLatencyTracker(10)
	if stats := lt.Stats(); stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
}

func TestLatencyRegistryPerLabel(t *testing.T) {
	r := NewLatencyRegistry(100)
	r.Record("cascade.rule", 2*time.Millisecond)
	r.Record("cascade.rule", 4*time.Millisecond)
	r.Record("cascade.semantic", 900*time.Millisecond)

	all := r.AllStats()
	if len(all) != 2 {
		t.Fatalf("labels = %d, want 2", len(all))
	}
	if all["cascade.rule"].Count != 2 {
		t.Errorf("cascade.rule count = %d, want 2", all["cascade.rule"].Count)
	}
	if all["cascade.semantic"].Max != 900*time.Millisecond {
		t.Errorf("cascade.semantic max = %v", all["cascade.semantic"].Max)
	}

	if got := r.Stats("missing"); got.Count != 0 {
		t.Errorf("missing label count = %d, want 0", got.Count)
	}
}

func TestAssessDBPoolHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats DBPoolStats
		want  PoolHealthStatus
	}{
		{"idle pool", DBPoolStats{InUse: 1, MaxOpenConnections: 25}, PoolHealthy},
		{"busy pool", DBPoolStats{InUse: 21, MaxOpenConnections: 25}, PoolDegraded},
		{"exhausted pool", DBPoolStats{InUse: 24, MaxOpenConnections: 25}, PoolUnhealthy},
		{"unlimited", DBPoolStats{InUse: 500}, PoolHealthy},
		{
			"waiters degrade a healthy pool",
			DBPoolStats{InUse: 1, MaxOpenConnections: 25, WaitCount: 10, WaitDuration: 6 * time.Second},
			PoolDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssessDBPoolHealth(tt.stats); got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}
