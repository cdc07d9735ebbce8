// Package sink receives scalar training metrics such as train_loss and
// kNN_accuracy, each tagged with a monotonic step.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Metric names emitted by the monitor and learner.
const (
	TrainLoss   = "train_loss"
	KNNAccuracy = "kNN_accuracy"
)

// Sink records named scalar values.
type Sink interface {
	Log(ctx context.Context, name string, value float64, step int64) error
}

// Discard drops every value.
type Discard struct{}

// Log implements Sink.
func (Discard) Log(context.Context, string, float64, int64) error { return nil }

// SlogSink writes metrics as structured log records.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink returns a sink logging at level through logger.
func NewSlogSink(logger *slog.Logger, level slog.Level) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: level}
}

// Log implements Sink.
func (s *SlogSink) Log(ctx context.Context, name string, value float64, step int64) error {
	s.logger.Log(ctx, s.level, "metric", "name", name, "value", value, "step", step)
	return nil
}

// Point is one recorded value.
type Point struct {
	Step  int64
	Value float64
}

// MemorySink keeps all values in memory. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.RWMutex
	series map[string][]Point
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{series: make(map[string][]Point)}
}

// Log implements Sink.
func (m *MemorySink) Log(_ context.Context, name string, value float64, step int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[name] = append(m.series[name], Point{Step: step, Value: value})
	return nil
}

// Points returns a copy of all values recorded under name.
func (m *MemorySink) Points(name string) []Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Point(nil), m.series[name]...)
}

// Last returns the most recent value recorded under name.
func (m *MemorySink) Last(name string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.series[name]
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Multi fans out to several sinks. All sinks are called; errors are joined.
type Multi []Sink

// Log implements Sink.
func (m Multi) Log(ctx context.Context, name string, value float64, step int64) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Log(ctx, name, value, step); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
