package interceptors

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// LoggingObserver logs pipeline steps. Steps are logged at debug level; a
// call that finishes with a fault is logged at info level.
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates a logging observer
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingObserver{logger: logger}
}

// Observe implements Observer
func (o *LoggingObserver) Observe(ev Event) {
	if ev.Stage == StageDone {
		if ev.Err != nil {
			o.logger.Info("intercepted call failed",
				"method", ev.Original.Key(),
				"error", ev.Err,
			)
			return
		}
		o.logger.Debug("intercepted call completed", "method", ev.Original.Key())
		return
	}

	o.logger.Debug("pipeline step",
		"method", ev.Original.Key(),
		"stage", ev.Stage.String(),
		"hook", ev.Hook,
		"skipped", ev.Skipped,
		"error", ev.Err,
	)
}

// MetricsCollector receives per-call counters
type MetricsCollector interface {
	IncrementInvocations(method string)
	IncrementSkipped(method string)
	IncrementFaults(method string, errorType string)
}

// MetricsObserver feeds a MetricsCollector from pipeline events
type MetricsObserver struct {
	collector MetricsCollector
}

// NewMetricsObserver creates a metrics observer
func NewMetricsObserver(collector MetricsCollector) *MetricsObserver {
	return &MetricsObserver{collector: collector}
}

// Observe implements Observer
func (o *MetricsObserver) Observe(ev Event) {
	method := ev.Original.Key()

	switch ev.Stage {
	case StageOriginal:
		if ev.Skipped {
			o.collector.IncrementSkipped(method)
		}
	case StageDone:
		o.collector.IncrementInvocations(method)
		if ev.Err != nil {
			o.collector.IncrementFaults(method, fmt.Sprintf("%T", ev.Err))
		}
	}
}

// MethodMetrics is a snapshot of the counters of one method
type MethodMetrics struct {
	Method      string
	Invocations int64
	Skipped     int64
	Faults      map[string]int64
}

// InMemoryMetrics is a MetricsCollector that keeps counters in memory
type InMemoryMetrics struct {
	mu      sync.Mutex
	methods map[string]*MethodMetrics
}

// NewInMemoryMetrics creates an empty collector
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{methods: make(map[string]*MethodMetrics)}
}

// IncrementInvocations implements MetricsCollector
func (m *InMemoryMetrics) IncrementInvocations(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(method).Invocations++
}

// IncrementSkipped implements MetricsCollector
func (m *InMemoryMetrics) IncrementSkipped(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(method).Skipped++
}

// IncrementFaults implements MetricsCollector
func (m *InMemoryMetrics) IncrementFaults(method string, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(method).Faults[errorType]++
}

// Snapshot returns a copy of all counters ordered by method
func (m *InMemoryMetrics) Snapshot() []MethodMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MethodMetrics, 0, len(m.methods))
	for _, mm := range m.methods {
		c := *mm
		c.Faults = make(map[string]int64, len(mm.Faults))
		for k, v := range mm.Faults {
			c.Faults[k] = v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Method < out[j].Method
	})
	return out
}

func (m *InMemoryMetrics) get(method string) *MethodMetrics {
	mm, ok := m.methods[method]
	if !ok {
		mm = &MethodMetrics{Method: method, Faults: make(map[string]int64)}
		m.methods[method] = mm
	}
	return mm
}

// Observers fans events out to several observers in order
func Observers(observers ...Observer) Observer {
	return ObserverFunc(func(ev Event) {
		for _, o := range observers {
			if o != nil {
				o.Observe(ev)
			}
		}
	})
}
