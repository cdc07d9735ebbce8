package knnmon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/config"
	"github.com/hupe1980/knnmon/eval"
	"github.com/hupe1980/knnmon/knn"
	"github.com/hupe1980/knnmon/matrix"
	"github.com/hupe1980/knnmon/sink"
	"github.com/hupe1980/knnmon/snapshot"
)

// Monitor estimates representation quality during self-supervised training.
//
// At the end of every training epoch it re-encodes the reference source into a
// fresh feature bank; every validation batch is then classified against the
// published bank with a weighted kNN vote and scored by top-1 accuracy.
//
// The bank has a single writer (TrainingEpochEnd) and any number of readers.
// Encoder calls are serialized because encoders carry mode state.
type Monitor struct {
	encoder    bank.Encoder
	reference  bank.Source
	classifier *knn.Classifier

	holder     bank.Holder
	aggregator eval.Aggregator
	snapshots  *snapshot.Store

	opts options

	buildMu  sync.Mutex // single bank writer
	encodeMu sync.Mutex
	epoch    atomic.Int64 // completed training epochs
	closed   atomic.Bool
}

// New creates a Monitor that builds banks by running encoder over reference.
// The monitor starts in the AwaitingFirstBank state.
func New(encoder bank.Encoder, reference bank.Source, optFns ...Option) (*Monitor, error) {
	if encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if reference == nil {
		return nil, errors.New("reference source is required")
	}

	o := applyOptions(optFns)
	clf, err := knn.NewClassifier(o.params,
		knn.WithParallelism(o.parallelism),
		knn.WithLogger(o.logger.Logger),
	)
	if err != nil {
		return nil, translateError(err)
	}
	switch o.device {
	case config.DeviceCPU, config.DeviceGPU:
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDevice, o.device)
	}

	m := &Monitor{
		encoder:    encoder,
		reference:  reference,
		classifier: clf,
		opts:       o,
	}
	if o.snapshotStore != nil {
		snapOpts := append([]snapshot.Option{snapshot.WithLogger(o.logger.Logger)}, o.snapshotOptions...)
		m.snapshots = snapshot.NewStore(o.snapshotStore, snapOpts...)
	}

	o.logger.WithK(o.params.K).DebugContext(context.Background(), "monitor created",
		"classes", o.params.Classes,
		"temperature", o.params.Temperature,
		"device", string(o.device),
		"parallelism", o.parallelism,
		"snapshots", m.snapshots != nil,
	)
	return m, nil
}

// Params returns the classifier parameters.
func (m *Monitor) Params() knn.Params { return m.classifier.Params() }

// State returns the bank lifecycle state.
func (m *Monitor) State() bank.State { return m.holder.State() }

// Epoch returns the number of completed training epochs.
func (m *Monitor) Epoch() int { return int(m.epoch.Load()) }

// MaxAccuracy returns the best validation accuracy seen so far, in [0, 1].
func (m *Monitor) MaxAccuracy() float64 { return m.aggregator.MaxAccuracy() }

// TrainingEpochEnd rebuilds the feature bank from the reference source and
// publishes it. The encoder runs in evaluation mode and is back in training
// mode afterwards. If the rebuild fails the previous bank stays published.
//
// With snapshots configured the new bank is persisted; persistence failures
// are logged and do not undo the publish.
func (m *Monitor) TrainingEpochEnd(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	epoch := int(m.epoch.Load())
	start := time.Now()

	m.encodeMu.Lock()
	fb, err := bank.NewBuilder(m.encoder, m.reference, bank.WithLogger(m.opts.logger.Logger)).Build(ctx)
	m.encodeMu.Unlock()

	if err != nil {
		m.opts.metricsCollector.RecordBankBuild(0, time.Since(start), err)
		m.opts.logger.LogBankBuild(ctx, epoch, 0, 0, err)
		return translateError(err)
	}

	fb = fb.WithEpoch(epoch)
	m.holder.Publish(fb)
	m.epoch.Store(int64(epoch + 1))

	m.opts.metricsCollector.RecordBankBuild(fb.Len(), time.Since(start), nil)
	m.opts.logger.LogBankBuild(ctx, epoch, fb.Len(), fb.Dim(), nil)

	if m.snapshots != nil && !fb.Empty() {
		m.persist(ctx, fb)
	}
	return nil
}

func (m *Monitor) persist(ctx context.Context, fb *bank.FeatureBank) {
	name, err := m.snapshots.Save(ctx, fb)
	m.opts.logger.LogSnapshot(ctx, name, err)
	if err != nil || m.opts.snapshotKeep <= 0 {
		return
	}
	if _, err := m.snapshots.Prune(ctx, m.opts.snapshotKeep); err != nil {
		m.opts.logger.WarnContext(ctx, "snapshot prune failed", "error", err)
	}
}

// Classify encodes inputs and ranks the classes for every row against the
// published bank. It returns ErrNoBank before the first bank and ErrEmptyBank
// when the published bank has no columns.
func (m *Monitor) Classify(ctx context.Context, inputs *matrix.Dense) (*knn.Predictions, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	fb, err := m.currentBank()
	if err != nil {
		return nil, err
	}
	return m.classify(ctx, inputs, fb)
}

func (m *Monitor) currentBank() (*bank.FeatureBank, error) {
	switch st := m.holder.State().(type) {
	case bank.Ready:
		if st.Bank().Empty() {
			return nil, ErrEmptyBank
		}
		return st.Bank(), nil
	default:
		return nil, ErrNoBank
	}
}

func (m *Monitor) classify(ctx context.Context, inputs *matrix.Dense, fb *bank.FeatureBank) (*knn.Predictions, error) {
	if inputs == nil {
		return nil, bank.ErrNilInputs
	}

	start := time.Now()
	preds, err := func() (*knn.Predictions, error) {
		emb, err := m.embed(ctx, inputs)
		if err != nil {
			return nil, err
		}
		return m.classifier.Classify(ctx, emb, fb)
	}()
	m.opts.metricsCollector.RecordClassify(inputs.Rows(), time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	return preds, nil
}

// embed runs the encoder in evaluation scope and returns L2-normalized rows.
func (m *Monitor) embed(ctx context.Context, inputs *matrix.Dense) (*matrix.Dense, error) {
	m.encodeMu.Lock()
	defer m.encodeMu.Unlock()

	restore := bank.EvalScope(m.encoder)
	defer restore()

	emb, err := m.encoder.Encode(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("encode queries: %w", err)
	}
	if emb.Rows() != inputs.Rows() {
		return nil, &bank.ErrDimensionMismatch{What: "embeddings per batch", Expected: inputs.Rows(), Actual: emb.Rows()}
	}
	emb = emb.Clone()
	emb.NormalizeRows()
	return emb, nil
}

// ValidationStep classifies one validation batch and adds its top-1 result
// to the running pass. ok is false, with a nil error, when there is no
// usable bank yet; the batch is then skipped entirely.
func (m *Monitor) ValidationStep(ctx context.Context, b bank.Batch) (res eval.BatchResult, ok bool, err error) {
	if m.closed.Load() {
		return eval.BatchResult{}, false, ErrClosed
	}

	var fb *bank.FeatureBank
	switch st := m.holder.State().(type) {
	case bank.AwaitingFirstBank:
		return eval.BatchResult{}, false, nil
	case bank.Ready:
		fb = st.Bank()
	}
	if fb.Empty() {
		return eval.BatchResult{}, false, nil
	}

	if b.Inputs == nil {
		return eval.BatchResult{}, false, bank.ErrNilInputs
	}
	if b.Inputs.Rows() != len(b.Labels) {
		return eval.BatchResult{}, false, &ErrDimensionMismatch{What: "batch labels", Expected: b.Inputs.Rows(), Actual: len(b.Labels)}
	}

	preds, err := m.classify(ctx, b.Inputs, fb)
	if err != nil {
		return eval.BatchResult{}, false, err
	}
	res, err = eval.Score(preds.Top1(), b.Labels)
	if err != nil {
		return eval.BatchResult{}, false, err
	}
	if err := m.aggregator.Add(res); err != nil {
		return eval.BatchResult{}, false, err
	}
	return res, true, nil
}

// DiscardValidation drops the batches recorded since the last
// ValidationEpochEnd. The maximum accuracy is kept.
func (m *Monitor) DiscardValidation() { m.aggregator.Reset() }

// ValidationEpochEnd closes the current validation pass, updates the maximum
// accuracy and logs kNN_accuracy in percent to the sink. ok is false when the
// pass recorded no samples; nothing is logged then.
func (m *Monitor) ValidationEpochEnd(ctx context.Context) (eval.Summary, bool, error) {
	if m.closed.Load() {
		return eval.Summary{}, false, ErrClosed
	}

	summary, ok := m.aggregator.Finish()
	if !ok {
		return summary, false, nil
	}

	epoch := m.Epoch()
	if err := m.opts.sink.Log(ctx, sink.KNNAccuracy, summary.Percent(), int64(epoch)); err != nil {
		m.opts.logger.WarnContext(ctx, "metric sink failed", "metric", sink.KNNAccuracy, "error", err)
	}
	m.opts.metricsCollector.RecordValidation(summary.Accuracy)
	m.opts.logger.LogValidation(ctx, epoch, summary.Accuracy, summary.MaxAccuracy, summary.Samples)
	return summary, true, nil
}

// Restore publishes the newest persisted bank. ok is false when no snapshot
// store is configured or it holds no snapshot.
func (m *Monitor) Restore(ctx context.Context) (ok bool, err error) {
	if m.closed.Load() {
		return false, ErrClosed
	}
	if m.snapshots == nil {
		return false, nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	fb, name, err := m.snapshots.Latest(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		m.opts.logger.LogRestore(ctx, name, 0, err)
		return false, translateError(err)
	}

	m.holder.Publish(fb)
	m.epoch.Store(int64(fb.Epoch() + 1))
	m.opts.logger.LogRestore(ctx, name, fb.Epoch(), nil)
	return true, nil
}
