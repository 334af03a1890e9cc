package authgate

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricTokenIssued)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("Value(MetricLoginSuccess) = %d, want 2", got)
	}
	if got := m.Value(MetricTokenIssued); got != 1 {
		t.Fatalf("Value(MetricTokenIssued) = %d, want 1", got)
	}
	if got := m.Value(MetricLoginFailure); got != 0 {
		t.Fatalf("Value(MetricLoginFailure) = %d, want 0", got)
	}
}

func TestMetricsDisabledNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if m.Enabled() {
		t.Fatal("expected metrics to report disabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("Value = %d, want 0 when disabled", got)
	}

	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot when disabled, got %+v", s)
	}
}

func TestMetricsObserveBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{time.Millisecond, 0},
		{7 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{80 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricVerifyLatency, s.d)
	}

	buckets := m.Snapshot().Histograms[MetricVerifyLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for _, s := range samples {
		if buckets[s.bucket] != 1 {
			t.Fatalf("bucket %d = %d, want 1 (sample %s)", s.bucket, buckets[s.bucket], s.d)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricLoginSuccess, time.Millisecond)

	s := m.Snapshot()
	if _, ok := s.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("expected no histogram for a counter id")
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	s := m.Snapshot()
	s.Counters[MetricLoginSuccess] = 99
	s.Histograms[MetricVerifyLatency][0] = 99

	if got := m.Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("snapshot mutation leaked into counters: %d", got)
	}
	if got := m.Snapshot().Histograms[MetricVerifyLatency][0]; got != 1 {
		t.Fatalf("snapshot mutation leaked into histogram: %d", got)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				m.Inc(MetricTokenAccepted)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricTokenAccepted); got != workers*perWorker {
		t.Fatalf("Value = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsNilReceiverSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("Value on nil = %d, want 0", got)
	}
	s := m.Snapshot()
	if len(s.Counters) != 0 {
		t.Fatal("expected empty snapshot from nil metrics")
	}
}
