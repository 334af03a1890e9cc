package authgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful Authenticate calls.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected Authenticate calls.
	MetricLoginFailure
	// MetricTokenIssued counts access tokens created by Authenticate.
	MetricTokenIssued
	// MetricTokenAccepted counts tokens VerifyToken resolved to an identity.
	MetricTokenAccepted
	// MetricTokenRejected counts tokens VerifyToken turned away.
	MetricTokenRejected
	// MetricAccountCreated counts successful Register calls.
	MetricAccountCreated
	// MetricAccountDuplicate counts Register calls rejected as duplicates.
	MetricAccountDuplicate
	// MetricRecoveryRequest counts accepted RequestRecovery calls.
	MetricRecoveryRequest
	// MetricRecoveryRateLimited counts throttled recovery operations.
	MetricRecoveryRateLimited
	// MetricRecoveryVerifySuccess counts codes marked verified.
	MetricRecoveryVerifySuccess
	// MetricRecoveryVerifyFailure counts rejected code verifications.
	MetricRecoveryVerifyFailure
	// MetricRecoveryResetSuccess counts completed password resets.
	MetricRecoveryResetSuccess
	// MetricRecoveryResetFailure counts rejected password resets.
	MetricRecoveryResetFailure
	// MetricRecoveryExpired counts challenges invalidated by expiry.
	MetricRecoveryExpired
	// MetricRateLimitHit counts rate-limit checks that denied requests.
	MetricRateLimitHit
	// MetricVerifyLatency is the VerifyToken latency histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and an optional latency histogram. Counters
// are padded to one cache line each so concurrent increments on different
// IDs do not contend.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample for id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and histogram buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
