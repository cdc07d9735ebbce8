package knnmon

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/blobstore"
	"github.com/hupe1980/knnmon/config"
	"github.com/hupe1980/knnmon/matrix"
	"github.com/hupe1980/knnmon/sink"
	"github.com/hupe1980/knnmon/snapshot"
	"github.com/hupe1980/knnmon/testutil"
)

// identityEncoder returns its inputs and records the mode it was called in.
type identityEncoder struct {
	mu       sync.Mutex
	training bool
	evalRuns int
	fail     error
}

func newIdentityEncoder() *identityEncoder { return &identityEncoder{training: true} }

func (e *identityEncoder) Encode(_ context.Context, in *matrix.Dense) (*matrix.Dense, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	if !e.training {
		e.evalRuns++
	}
	return in.Clone(), nil
}

func (e *identityEncoder) SetTraining(training bool) {
	e.mu.Lock()
	e.training = training
	e.mu.Unlock()
}

func (e *identityEncoder) setFail(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

type dataset struct {
	rows   [][]float32
	labels []int
	source bank.SliceSource
}

func clusters(t *testing.T, perClass, classes int) dataset {
	t.Helper()
	rng := testutil.NewRNG(42)
	rows, labels := rng.LabeledClusters(perClass, 16, classes, 0.05)
	src, err := bank.Split(rows, labels, 16)
	require.NoError(t, err)
	return dataset{rows: rows, labels: labels, source: src}
}

func validate(t *testing.T, m *Monitor, src bank.SliceSource) (int, bool) {
	t.Helper()
	samples := 0
	for _, b := range src {
		res, ok, err := m.ValidationStep(context.Background(), b)
		require.NoError(t, err)
		if !ok {
			return samples, false
		}
		samples += res.Samples
	}
	return samples, true
}

func TestNew(t *testing.T) {
	enc := newIdentityEncoder()
	src := bank.SliceSource{}

	_, err := New(nil, src)
	assert.Error(t, err)

	_, err = New(enc, nil)
	assert.Error(t, err)

	_, err = New(enc, src, WithKNN(0, 0.1))
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = New(enc, src, WithKNN(5, 0))
	assert.ErrorIs(t, err, ErrInvalidTemperature)

	_, err = New(enc, src, WithClasses(1))
	assert.ErrorIs(t, err, ErrInvalidClasses)

	_, err = New(enc, src, WithDevice("tpu"))
	assert.ErrorIs(t, err, config.ErrInvalidDevice)

	m, err := New(enc, src)
	require.NoError(t, err)
	assert.Equal(t, 200, m.Params().K)
	assert.IsType(t, bank.AwaitingFirstBank{}, m.State())
}

func TestValidationBeforeFirstBank(t *testing.T) {
	ds := clusters(t, 10, 3)
	mem := sink.NewMemorySink()
	m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(5, 0.1), WithSink(mem))
	require.NoError(t, err)

	n, ok := validate(t, m, ds.source)
	assert.False(t, ok)
	assert.Zero(t, n)

	_, ok, err = m.ValidationEpochEnd(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, mem.Points(sink.KNNAccuracy))

	_, err = m.Classify(context.Background(), matrix.Zeros(1, 16))
	assert.ErrorIs(t, err, ErrNoBank)
}

func TestMonitorLifecycle(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 20, 3)
	enc := newIdentityEncoder()
	mem := sink.NewMemorySink()
	metrics := &BasicMetricsCollector{}

	m, err := New(enc, ds.source,
		WithClasses(3),
		WithKNN(5, 0.1),
		WithParallelism(2),
		WithSink(mem),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)

	require.NoError(t, m.TrainingEpochEnd(ctx))
	assert.True(t, enc.training, "encoder must be back in training mode")
	assert.Equal(t, 1, m.Epoch())

	ready, ok := m.State().(bank.Ready)
	require.True(t, ok)
	assert.Equal(t, 60, ready.Bank().Len())
	assert.Equal(t, 16, ready.Bank().Dim())
	assert.Equal(t, 0, ready.Bank().Epoch())

	n, ok := validate(t, m, ds.source)
	require.True(t, ok)
	assert.Equal(t, 60, n)
	assert.True(t, enc.training)

	summary, ok, err := m.ValidationEpochEnd(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60, summary.Samples)
	assert.GreaterOrEqual(t, summary.Accuracy, 0.9)
	assert.Equal(t, summary.Accuracy, m.MaxAccuracy())

	p, ok := mem.Last(sink.KNNAccuracy)
	require.True(t, ok)
	assert.Equal(t, int64(1), p.Step)
	assert.InDelta(t, summary.Accuracy*100, p.Value, 1e-9)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BankBuildCount)
	assert.Equal(t, int64(60), stats.BankSize)
	assert.Equal(t, int64(len(ds.source)), stats.ClassifyCount)
	assert.Equal(t, int64(1), stats.ValidationCount)
	assert.InDelta(t, summary.Accuracy, stats.LastAccuracy, 1e-12)

	preds, err := m.Classify(ctx, ds.source[0].Inputs)
	require.NoError(t, err)
	assert.Equal(t, ds.source[0].Inputs.Rows(), preds.Len())
}

func TestEmptyReferenceSkipsValidation(t *testing.T) {
	ds := clusters(t, 5, 3)
	m, err := New(newIdentityEncoder(), bank.SliceSource{}, WithClasses(3), WithKNN(1, 0.1))
	require.NoError(t, err)

	require.NoError(t, m.TrainingEpochEnd(context.Background()))
	ready, ok := m.State().(bank.Ready)
	require.True(t, ok)
	assert.True(t, ready.Bank().Empty())

	_, ok = validate(t, m, ds.source)
	assert.False(t, ok)

	_, err = m.Classify(context.Background(), ds.source[0].Inputs)
	assert.ErrorIs(t, err, ErrEmptyBank)
}

func TestValidationStepErrors(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 10, 3)

	t.Run("k exceeds bank", func(t *testing.T) {
		m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(31, 0.1))
		require.NoError(t, err)
		require.NoError(t, m.TrainingEpochEnd(ctx))

		_, _, err = m.ValidationStep(ctx, ds.source[0])
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("label count", func(t *testing.T) {
		m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(3, 0.1))
		require.NoError(t, err)
		require.NoError(t, m.TrainingEpochEnd(ctx))

		b := ds.source[0]
		b.Labels = b.Labels[:1]
		_, _, err = m.ValidationStep(ctx, b)
		var dm *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("query dimension", func(t *testing.T) {
		m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(3, 0.1))
		require.NoError(t, err)
		require.NoError(t, m.TrainingEpochEnd(ctx))

		_, _, err = m.ValidationStep(ctx, bank.Batch{Inputs: matrix.Zeros(2, 4), Labels: []int{0, 1}})
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 16, dm.Expected)
		assert.Equal(t, 4, dm.Actual)
	})

	t.Run("nil inputs", func(t *testing.T) {
		m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(3, 0.1))
		require.NoError(t, err)
		require.NoError(t, m.TrainingEpochEnd(ctx))

		_, _, err = m.ValidationStep(ctx, bank.Batch{})
		assert.ErrorIs(t, err, bank.ErrNilInputs)
	})
}

func TestDiscardValidation(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 10, 3)

	m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(3, 0.1))
	require.NoError(t, err)
	require.NoError(t, m.TrainingEpochEnd(ctx))

	_, ok, err := m.ValidationStep(ctx, ds.source[0])
	require.NoError(t, err)
	require.True(t, ok)

	b := ds.source[1]
	b.Labels = b.Labels[:1]
	_, _, err = m.ValidationStep(ctx, b)
	require.Error(t, err)
	m.DiscardValidation()

	_, ok, err = m.ValidationEpochEnd(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "discarded pass must not be reported")

	samples, ok := validate(t, m, bank.SliceSource{ds.source[1]})
	require.True(t, ok)
	summary, ok, err := m.ValidationEpochEnd(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, samples, summary.Samples)
}

func TestFailedRebuildKeepsBank(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 10, 3)
	enc := newIdentityEncoder()
	metrics := &BasicMetricsCollector{}
	m, err := New(enc, ds.source, WithClasses(3), WithKNN(3, 0.1), WithMetricsCollector(metrics))
	require.NoError(t, err)

	require.NoError(t, m.TrainingEpochEnd(ctx))
	before := m.State().(bank.Ready).Bank()

	boom := errors.New("device lost")
	enc.setFail(boom)
	assert.ErrorIs(t, m.TrainingEpochEnd(ctx), boom)
	assert.True(t, enc.training)

	after := m.State().(bank.Ready).Bank()
	assert.Same(t, before, after)
	assert.Equal(t, 1, m.Epoch())
	assert.Equal(t, int64(1), metrics.GetStats().BankBuildErrors)
}

func TestSnapshotsAndRestore(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 10, 3)
	blobs := blobstore.NewMemoryStore()

	m, err := New(newIdentityEncoder(), ds.source,
		WithClasses(3),
		WithKNN(3, 0.1),
		WithSnapshots(blobs, 2, snapshot.WithCompression(snapshot.CompressionZSTD)),
	)
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, m.TrainingEpochEnd(ctx))
	}

	names, err := snapshot.NewStore(blobs).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{snapshot.FileName(1), snapshot.FileName(2)}, names)

	resumed, err := New(newIdentityEncoder(), ds.source,
		WithClasses(3),
		WithKNN(3, 0.1),
		WithSnapshots(blobs, 2),
	)
	require.NoError(t, err)

	ok, err := resumed.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, resumed.Epoch())

	restored := resumed.State().(bank.Ready).Bank()
	original := m.State().(bank.Ready).Bank()
	assert.Equal(t, original.Labels(), restored.Labels())
	assert.Equal(t, original.Features().RawData(), restored.Features().RawData())

	n, ok := validate(t, resumed, ds.source)
	assert.True(t, ok)
	assert.Equal(t, 30, n)
}

func TestRestoreWithoutSnapshots(t *testing.T) {
	m, err := New(newIdentityEncoder(), bank.SliceSource{}, WithClasses(3), WithKNN(3, 0.1))
	require.NoError(t, err)
	ok, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	m, err = New(newIdentityEncoder(), bank.SliceSource{}, WithClasses(3), WithKNN(3, 0.1),
		WithSnapshots(blobstore.NewMemoryStore(), 0))
	require.NoError(t, err)
	ok, err = m.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.IsType(t, bank.AwaitingFirstBank{}, m.State())
}

func TestWithConfigSnapshotDir(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 5, 3)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Classes = 3
	cfg.K = 3
	cfg.SnapshotDir = dir
	cfg.LogLevel = 100

	m, err := New(newIdentityEncoder(), ds.source, WithConfig(cfg))
	require.NoError(t, err)
	require.NoError(t, m.TrainingEpochEnd(ctx))

	names, err := blobstore.NewLocalStore(dir).List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, snapshot.ManifestName)
	assert.Contains(t, names, snapshot.FileName(0))
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 5, 3)
	m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(3, 0.1))
	require.NoError(t, err)
	require.NoError(t, m.TrainingEpochEnd(ctx))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.IsType(t, bank.AwaitingFirstBank{}, m.State())

	_, _, err = m.ValidationStep(ctx, ds.source[0])
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.TrainingEpochEnd(ctx), ErrClosed)
	_, _, err = m.ValidationEpochEnd(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentValidationDuringRebuild(t *testing.T) {
	ctx := context.Background()
	ds := clusters(t, 10, 3)
	m, err := New(newIdentityEncoder(), ds.source, WithClasses(3), WithKNN(3, 0.1))
	require.NoError(t, err)
	require.NoError(t, m.TrainingEpochEnd(ctx))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, b := range ds.source {
				res, ok, err := m.ValidationStep(ctx, b)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, b.Inputs.Rows(), res.Samples)
			}
		}()
	}
	for range 3 {
		require.NoError(t, m.TrainingEpochEnd(ctx))
	}
	wg.Wait()

	summary, ok, err := m.ValidationEpochEnd(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4*30, summary.Samples)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	err := translateError(&bank.ErrDimensionMismatch{What: "bank labels", Expected: 3, Actual: 2})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, "bank labels", dm.What)
	assert.Equal(t, 3, dm.Expected)
	assert.Contains(t, dm.Error(), "bank labels")

	err = translateError(matrix.ErrShape)
	require.ErrorAs(t, err, &dm)
	assert.ErrorIs(t, err, matrix.ErrShape)

	other := errors.New("other")
	assert.Same(t, other, translateError(other))
}
