package knnmon

import (
	"log/slog"

	"github.com/hupe1980/knnmon/blobstore"
	"github.com/hupe1980/knnmon/config"
	"github.com/hupe1980/knnmon/knn"
	"github.com/hupe1980/knnmon/sink"
	"github.com/hupe1980/knnmon/snapshot"
)

type options struct {
	params           knn.Params
	device           config.Device
	parallelism      int
	metricsCollector MetricsCollector
	logger           *Logger
	sink             sink.Sink
	snapshotStore    blobstore.Store
	snapshotOptions  []snapshot.Option
	snapshotKeep     int
}

// Option configures a Monitor.
type Option func(*options)

// WithConfig applies a loaded configuration: classifier parameters, device,
// parallelism, log level and, when SnapshotDir is set, local snapshots.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	mon, err := knnmon.New(enc, reference, knnmon.WithConfig(*cfg))
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.params = cfg.KNN()
		o.device = cfg.Device
		o.parallelism = cfg.Parallelism
		o.logger = NewTextLogger(cfg.LogLevel)
		if cfg.SnapshotDir != "" {
			o.snapshotStore = blobstore.NewLocalStore(cfg.SnapshotDir)
			o.snapshotOptions = []snapshot.Option{snapshot.WithCompression(cfg.Compression)}
			o.snapshotKeep = cfg.SnapshotKeep
		}
	}
}

// WithKNN sets the number of neighbours and the temperature.
func WithKNN(k int, temperature float64) Option {
	return func(o *options) {
		o.params.K = k
		o.params.Temperature = temperature
	}
}

// WithClasses sets the number of label classes.
func WithClasses(classes int) Option {
	return func(o *options) {
		o.params.Classes = classes
	}
}

// WithDevice records where embeddings are materialized. It never changes
// results.
func WithDevice(d config.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithParallelism classifies validation rows on up to n goroutines.
// Results are identical for every n.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &knnmon.BasicMetricsCollector{}
//	mon, _ := knnmon.New(enc, reference, knnmon.WithMetricsCollector(metrics))
//	// ... train ...
//	stats := metrics.GetStats()
//	fmt.Printf("Banks: %d, last accuracy: %.3f\n", stats.BankBuildCount, stats.LastAccuracy)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := knnmon.NewJSONLogger(slog.LevelInfo)
//	mon, _ := knnmon.New(enc, reference, knnmon.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithSink sets the metric sink that receives kNN_accuracy.
func WithSink(s sink.Sink) Option {
	return func(o *options) {
		if s == nil {
			s = sink.Discard{}
		}
		o.sink = s
	}
}

// WithSnapshots persists every published bank to store and keeps the newest
// keep snapshots. keep <= 0 keeps all of them.
//
// Example with S3:
//
//	blobs, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("banks/"))
//	mon, _ := knnmon.New(enc, reference, knnmon.WithSnapshots(blobs, 3))
func WithSnapshots(store blobstore.Store, keep int, optFns ...snapshot.Option) Option {
	return func(o *options) {
		o.snapshotStore = store
		o.snapshotKeep = keep
		o.snapshotOptions = optFns
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		params:           knn.DefaultParams(),
		device:           config.DeviceCPU,
		parallelism:      1,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		sink:             sink.Discard{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
