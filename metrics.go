package authkit

import "sync/atomic"

// MetricID identifies one client-side counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts completed logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts terminal login rejections.
	MetricLoginFailure
	// MetricLoginStepUp counts login attempts answered with a step-up
	// challenge.
	MetricLoginStepUp
	// MetricLoginTransportFailure counts login attempts lost to the network.
	MetricLoginTransportFailure
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricTokenExpired counts silent logouts triggered by local expiry
	// detection.
	MetricTokenExpired
	// MetricTokenRefreshed counts adopted replacement tokens.
	MetricTokenRefreshed
	// MetricUserFetch counts /users/me fetches.
	MetricUserFetch
	// MetricUserFetchFailure counts tolerated /users/me failures.
	MetricUserFetchFailure
	// MetricPermissionRefresh counts authoritative permission fetches.
	MetricPermissionRefresh
	// MetricPermissionRefreshFailure counts swallowed permission fetch
	// failures.
	MetricPermissionRefreshFailure

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size atomic counter registry. A nil or disabled
// Metrics accepts increments and records nothing.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a Metrics registry.
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter. Safe to call concurrently with increments;
// the snapshot is not guaranteed to be a single atomic cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snapshot
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snapshot.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snapshot
}
