package metrics

import (
	"log/slog"
)

// LogSink writes progress through a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink over logger. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Step logs one training step.
func (s *LogSink) Step(m StepMetrics) {
	s.logger.Info("train step",
		slog.Int("epoch", m.Epoch),
		slog.Int64("step", m.Step),
		slog.Float64("loss", float64(m.Loss)),
		slog.Float64("content", float64(m.Content)),
		slog.Float64("style", float64(m.Style)),
		slog.Float64("lr", float64(m.LR)),
		slog.Duration("duration", m.Duration),
	)
}

// Epoch logs an epoch summary.
func (s *LogSink) Epoch(m EpochMetrics) {
	s.logger.Info("epoch done",
		slog.Int("epoch", m.Epoch),
		slog.Float64("mean_loss", m.MeanLoss),
		slog.Int("steps", m.Steps),
		slog.Int("skipped", m.Skipped),
		slog.Duration("duration", m.Duration),
	)
}

// Warn logs a skipped step.
func (s *LogSink) Warn(step int64, reason string) {
	s.logger.Warn("step skipped", slog.Int64("step", step), slog.String("reason", reason))
}
