package knnmon

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Training curves (train_loss, kNN_accuracy) go to a sink.Sink instead.
type MetricsCollector interface {
	// RecordBankBuild is called after each bank rebuild. count is the number
	// of bank columns, err is nil if successful.
	RecordBankBuild(count int, duration time.Duration, err error)

	// RecordClassify is called after each classified validation batch.
	RecordClassify(queries int, duration time.Duration, err error)

	// RecordValidation is called at the end of each validation pass that saw
	// samples.
	RecordValidation(accuracy float64)

	// RecordTrainStep is called after each training step driven by Fit.
	RecordTrainStep(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBankBuild(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordClassify(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordValidation(float64)                  {}
func (NoopMetricsCollector) RecordTrainStep(time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	BankBuildCount      atomic.Int64
	BankBuildErrors     atomic.Int64
	BankBuildTotalNanos atomic.Int64
	BankSize            atomic.Int64
	ClassifyCount       atomic.Int64
	ClassifyErrors      atomic.Int64
	ClassifyQueries     atomic.Int64
	ClassifyTotalNanos  atomic.Int64
	ValidationCount     atomic.Int64
	TrainStepCount      atomic.Int64
	TrainStepErrors     atomic.Int64

	lastAccuracy atomic.Uint64 // math.Float64bits
}

// RecordBankBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBankBuild(count int, duration time.Duration, err error) {
	b.BankBuildCount.Add(1)
	b.BankBuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BankBuildErrors.Add(1)
		return
	}
	b.BankSize.Store(int64(count))
}

// RecordClassify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClassify(queries int, duration time.Duration, err error) {
	b.ClassifyCount.Add(1)
	b.ClassifyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ClassifyErrors.Add(1)
		return
	}
	b.ClassifyQueries.Add(int64(queries))
}

// RecordValidation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordValidation(accuracy float64) {
	b.ValidationCount.Add(1)
	b.lastAccuracy.Store(math.Float64bits(accuracy))
}

// RecordTrainStep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrainStep(_ time.Duration, err error) {
	b.TrainStepCount.Add(1)
	if err != nil {
		b.TrainStepErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BankBuildCount:  b.BankBuildCount.Load(),
		BankBuildErrors: b.BankBuildErrors.Load(),
		BankBuildAvg:    avg(b.BankBuildTotalNanos.Load(), b.BankBuildCount.Load()),
		BankSize:        b.BankSize.Load(),
		ClassifyCount:   b.ClassifyCount.Load(),
		ClassifyErrors:  b.ClassifyErrors.Load(),
		ClassifyQueries: b.ClassifyQueries.Load(),
		ClassifyAvg:     avg(b.ClassifyTotalNanos.Load(), b.ClassifyCount.Load()),
		ValidationCount: b.ValidationCount.Load(),
		LastAccuracy:    math.Float64frombits(b.lastAccuracy.Load()),
		TrainStepCount:  b.TrainStepCount.Load(),
		TrainStepErrors: b.TrainStepErrors.Load(),
	}
}

func avg(totalNanos, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(totalNanos / count)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BankBuildCount  int64
	BankBuildErrors int64
	BankBuildAvg    time.Duration
	BankSize        int64
	ClassifyCount   int64
	ClassifyErrors  int64
	ClassifyQueries int64
	ClassifyAvg     time.Duration
	ValidationCount int64
	LastAccuracy    float64
	TrainStepCount  int64
	TrainStepErrors int64
}
