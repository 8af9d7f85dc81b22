package goToken

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricRegisterSuccess counts users created by Register.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterFailure counts Register calls that failed for reasons other than those below.
	MetricRegisterFailure
	// MetricRegisterDuplicate counts Register calls rejected with ErrDuplicateIdentity.
	MetricRegisterDuplicate
	// MetricRegisterWeakCredential counts Register calls rejected by the password policy.
	MetricRegisterWeakCredential
	// MetricRegisterRateLimited counts throttled Register calls.
	MetricRegisterRateLimited
	// MetricLoginSuccess counts logins that returned a token.
	MetricLoginSuccess
	// MetricLoginFailure counts logins rejected with ErrInvalidCredential.
	MetricLoginFailure
	// MetricLoginUnknownIdentity counts the subset of login failures for unknown identifiers.
	MetricLoginUnknownIdentity
	// MetricLoginRateLimited counts throttled logins.
	MetricLoginRateLimited
	// MetricPasswordUpgraded counts stored hashes rewritten with current parameters.
	MetricPasswordUpgraded
	// MetricTokenIssued counts tokens minted.
	MetricTokenIssued
	// MetricAuthenticateSuccess counts tokens accepted by Authenticate.
	MetricAuthenticateSuccess
	// MetricAuthenticateFailure counts tokens rejected by Authenticate.
	MetricAuthenticateFailure
	// MetricTokenMalformed counts rejections with ErrMalformed.
	MetricTokenMalformed
	// MetricTokenUnknownKey counts rejections with ErrUnknownKey.
	MetricTokenUnknownKey
	// MetricTokenBadSignature counts rejections with ErrBadSignature.
	MetricTokenBadSignature
	// MetricTokenExpired counts rejections with ErrExpired.
	MetricTokenExpired
	// MetricTokenNotYetValid counts rejections with ErrNotYetValid.
	MetricTokenNotYetValid
	// MetricTokenClaimMismatch counts rejections with ErrClaimMismatch.
	MetricTokenClaimMismatch
	// MetricKeyRotated counts successful RotateKey calls.
	MetricKeyRotated
	// MetricAuthenticateLatency is the Authenticate latency histogram.
	MetricAuthenticateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the inclusive upper bounds of the latency buckets. The
// last bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	50 * time.Microsecond,
	100 * time.Microsecond,
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	25 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNs   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters and the authenticate latency
// histogram. A nil or disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms hold
// non-cumulative bucket counts; HistogramSums holds the observed total.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricAuthenticateLatency is a
// histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthenticateLatency {
		return
	}
	if d < 0 {
		d = 0
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddUint64(&m.histograms[id].sumNs, uint64(d))
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricAuthenticateLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		h := &m.histograms[MetricAuthenticateLatency]
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&h.buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
		s.HistogramSums[MetricAuthenticateLatency] = time.Duration(atomic.LoadUint64(&h.sumNs))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
