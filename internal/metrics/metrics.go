// Package metrics reports training progress: per-step losses, per-epoch
// summaries and skipped steps. Sinks fan out to structured logs and to a
// compact binary event log.
package metrics

import (
	"time"
)

// StepMetrics describes one applied training step.
type StepMetrics struct {
	Epoch    int
	Step     int64
	Loss     float32
	Content  float32
	Style    float32
	LR       float32
	Duration time.Duration
}

// EpochMetrics summarizes one epoch. MeanLoss averages applied steps only.
type EpochMetrics struct {
	Epoch    int
	MeanLoss float64
	Steps    int
	Skipped  int
	Duration time.Duration
}

// Sink receives training progress.
type Sink interface {
	Step(m StepMetrics)
	Epoch(m EpochMetrics)
	// Warn reports a skipped step.
	Warn(step int64, reason string)
}

type multiSink []Sink

// MultiSink forwards every call to each sink in order.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Step(s StepMetrics) {
	for _, sink := range m {
		sink.Step(s)
	}
}

func (m multiSink) Epoch(e EpochMetrics) {
	for _, sink := range m {
		sink.Epoch(e)
	}
}

func (m multiSink) Warn(step int64, reason string) {
	for _, sink := range m {
		sink.Warn(step, reason)
	}
}

// Mean is a running mean.
type Mean struct {
	sum   float64
	count int
}

// Add folds v into the mean.
func (m *Mean) Add(v float64) {
	m.sum += v
	m.count++
}

// Value returns the mean, or 0 when empty.
func (m *Mean) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Count returns the number of values added.
func (m *Mean) Count() int {
	return m.count
}

// Reset empties the mean.
func (m *Mean) Reset() {
	*m = Mean{}
}
