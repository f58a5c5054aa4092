package tierauth

import "sync/atomic"

// MetricID defines a public type used by tierauth APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricTokenCreated is an exported constant or variable used by the session lifecycle engine.
	MetricTokenCreated MetricID = iota
	// MetricTokenRotatedInPlace is an exported constant or variable used by the session lifecycle engine.
	MetricTokenRotatedInPlace
	// MetricSessionStarted is an exported constant or variable used by the session lifecycle engine.
	MetricSessionStarted
	// MetricUserDetached is an exported constant or variable used by the session lifecycle engine.
	MetricUserDetached
	// MetricFraudDetected is an exported constant or variable used by the session lifecycle engine.
	MetricFraudDetected
	// MetricUpdateNoop is an exported constant or variable used by the session lifecycle engine.
	MetricUpdateNoop
	// MetricLoginSuccess is an exported constant or variable used by the session lifecycle engine.
	MetricLoginSuccess
	// MetricLoginNoSession is an exported constant or variable used by the session lifecycle engine.
	MetricLoginNoSession
	// MetricLogout is an exported constant or variable used by the session lifecycle engine.
	MetricLogout
	// MetricRotationContended is an exported constant or variable used by the session lifecycle engine.
	MetricRotationContended
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds in-process lifecycle counters. All methods are safe for
// concurrent use; a nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by tierauth APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled describes the enabled operation and its observable behavior.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
