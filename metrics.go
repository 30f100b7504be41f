package contactguard

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricTokenIssued counts minted tokens of any purpose.
	MetricTokenIssued MetricID = iota
	// MetricAuthSuccess counts accepted access tokens.
	MetricAuthSuccess
	// MetricAuthInvalidSignature counts signature rejections.
	MetricAuthInvalidSignature
	// MetricAuthWrongPurpose counts purpose-claim rejections.
	MetricAuthWrongPurpose
	// MetricAuthExpired counts expiry rejections.
	MetricAuthExpired
	// MetricAuthRevoked counts denylist rejections.
	MetricAuthRevoked
	// MetricRefreshSuccess counts completed refresh rotations.
	MetricRefreshSuccess
	// MetricLogout counts logout-time revocations.
	MetricLogout
	// MetricAdmitAllowed counts admitted requests.
	MetricAdmitAllowed
	// MetricAdmitRejected counts rate-limited requests.
	MetricAdmitRejected
	// MetricAdmitDegraded counts admissions resolved by the failure
	// policy during a counter-store outage.
	MetricAdmitDegraded
	// MetricCacheHit counts birthday-cache hits.
	MetricCacheHit
	// MetricCacheMiss counts birthday-cache misses.
	MetricCacheMiss
	// MetricCacheBypass counts pass-through computations during a cache
	// store outage.
	MetricCacheBypass
	// MetricCacheInvalidation counts explicit invalidations.
	MetricCacheInvalidation
	// MetricAuditDropped counts audit events discarded by a saturated
	// dispatcher buffer.
	MetricAuditDropped

	metricCount
)

// Metrics is a fixed set of lock-free counters. Inc on the hot path is a
// single atomic add.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter. Unknown IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter. The copy is not atomic across counters;
// individual values are.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
