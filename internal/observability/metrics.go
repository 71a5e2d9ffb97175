package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates stage events in memory. It is a StageObserver.
type Metrics struct {
	mu     sync.Mutex
	stages map[Stage]*StageMetrics

	runsTotal  atomic.Int64
	runsFailed atomic.Int64
}

// StageMetrics represents metrics for a single stage.
type StageMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{stages: make(map[Stage]*StageMetrics)}
}

func (m *Metrics) ObserveStage(_ context.Context, event StageEvent) {
	sm := m.getStageMetrics(event.Stage)
	sm.executionCount.Add(1)
	sm.totalDuration.Add(event.Duration.Milliseconds())
	if event.Outcome == OutcomeFailed {
		sm.errorCount.Add(1)
	}
}

// RecordRun records the end of a pipeline run.
func (m *Metrics) RecordRun(err error) {
	m.runsTotal.Add(1)
	if err != nil {
		m.runsFailed.Add(1)
	}
}

func (m *Metrics) getStageMetrics(stage Stage) *StageMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.stages[stage]
	if !ok {
		sm = &StageMetrics{}
		m.stages[stage] = sm
	}
	return sm
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.runsTotal.Store(0)
	m.runsFailed.Store(0)

	m.mu.Lock()
	m.stages = make(map[Stage]*StageMetrics)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make(map[Stage]*StageMetricsSnapshot, len(m.stages))
	for stage, sm := range m.stages {
		count := sm.executionCount.Load()
		total := sm.totalDuration.Load()
		var avg int64
		if count > 0 {
			avg = total / count
		}
		stages[stage] = &StageMetricsSnapshot{
			ExecutionCount:  count,
			TotalDuration:   total,
			ErrorCount:      sm.errorCount.Load(),
			AverageDuration: avg,
		}
	}

	return &MetricsSnapshot{
		RunsTotal:  m.runsTotal.Load(),
		RunsFailed: m.runsFailed.Load(),
		Stages:     stages,
		TakenAt:    time.Now(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RunsTotal  int64
	RunsFailed int64
	Stages     map[Stage]*StageMetricsSnapshot
	TakenAt    time.Time
}

// StageMetricsSnapshot represents metrics for a specific stage.
type StageMetricsSnapshot struct {
	ExecutionCount  int64
	TotalDuration   int64
	ErrorCount      int64
	AverageDuration int64
}

// SuccessRate returns the run success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RunsTotal == 0 {
		return 100.0
	}
	return float64(s.RunsTotal-s.RunsFailed) / float64(s.RunsTotal) * 100.0
}
