package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the HTTP surface and the
// escalation evaluator.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64

	evaluatorRuns      int64
	evaluatorItems     int64
	evaluatorFailures  int64
	breachesRecorded   int64
	escalationsEmitted int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEvaluatorRun tallies one evaluator batch: tickets examined and
// per-item failures.
func (m *Metrics) RecordEvaluatorRun(items, failures int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluatorRuns++
	m.evaluatorItems += int64(items)
	m.evaluatorFailures += int64(failures)
}

// RecordBreach counts a persisted SLA breach row.
func (m *Metrics) RecordBreach() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breachesRecorded++
}

// RecordEscalationEmitted counts a notification event actually published.
func (m *Metrics) RecordEscalationEmitted() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalationsEmitted++
}

// EvaluatorSnapshot returns evaluator counters for the health/debug surface.
func (m *Metrics) EvaluatorSnapshot() (runs, items, failures, breaches, emitted int64) {
	if m == nil {
		return 0, 0, 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evaluatorRuns, m.evaluatorItems, m.evaluatorFailures, m.breachesRecorded, m.escalationsEmitted
}
