// Package eval aggregates per-batch top-1 results into an accuracy per
// validation pass and tracks the best accuracy seen across passes.
package eval

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNegativeCount is returned for batch results with negative counts.
	ErrNegativeCount = errors.New("eval: negative count")

	// ErrCorrectExceedsSamples is returned when a batch reports more correct
	// predictions than samples.
	ErrCorrectExceedsSamples = errors.New("eval: correct exceeds samples")

	// ErrLengthMismatch is returned by Score when predictions and targets differ in length.
	ErrLengthMismatch = errors.New("eval: predictions and targets differ in length")
)

// BatchResult is the outcome of one validation batch.
type BatchResult struct {
	Samples int
	Correct int
}

// Validate checks that the counts are consistent.
func (r BatchResult) Validate() error {
	if r.Samples < 0 || r.Correct < 0 {
		return fmt.Errorf("%w: samples=%d correct=%d", ErrNegativeCount, r.Samples, r.Correct)
	}
	if r.Correct > r.Samples {
		return fmt.Errorf("%w: %d > %d", ErrCorrectExceedsSamples, r.Correct, r.Samples)
	}
	return nil
}

// Score compares top-1 predictions with targets.
func Score(top1, targets []int) (BatchResult, error) {
	if len(top1) != len(targets) {
		return BatchResult{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(top1), len(targets))
	}
	r := BatchResult{Samples: len(targets)}
	for i, p := range top1 {
		if p == targets[i] {
			r.Correct++
		}
	}
	return r, nil
}

// Summary describes a finished validation pass.
type Summary struct {
	Samples     int
	Correct     int
	Accuracy    float64 // Accuracy of this pass in [0, 1].
	MaxAccuracy float64 // MaxAccuracy over all finished passes, including this one.
}

// Percent returns the pass accuracy in percent.
func (s Summary) Percent() float64 { return s.Accuracy * 100 }

// Aggregator collects batch results of the current pass.
// It is safe for concurrent use.
type Aggregator struct {
	mu          sync.Mutex
	samples     int
	correct     int
	batches     int
	maxAccuracy float64
}

// Add records one batch of the current pass.
func (a *Aggregator) Add(r BatchResult) error {
	if err := r.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples += r.Samples
	a.correct += r.Correct
	a.batches++
	return nil
}

// Accuracy returns the running accuracy of the current pass.
// ok is false while no samples have been recorded.
func (a *Aggregator) Accuracy() (acc float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.samples == 0 {
		return 0, false
	}
	return float64(a.correct) / float64(a.samples), true
}

// Reset discards the current pass without touching the maximum accuracy.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples, a.correct, a.batches = 0, 0, 0
}

// Finish closes the current pass, updates the maximum accuracy and starts a
// new pass. ok is false if the pass recorded no samples; the maximum is left
// unchanged in that case.
func (a *Aggregator) Finish() (Summary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		a.samples, a.correct, a.batches = 0, 0, 0
	}()

	if a.samples == 0 {
		return Summary{MaxAccuracy: a.maxAccuracy}, false
	}

	acc := float64(a.correct) / float64(a.samples)
	a.maxAccuracy = max(a.maxAccuracy, acc)
	return Summary{
		Samples:     a.samples,
		Correct:     a.correct,
		Accuracy:    acc,
		MaxAccuracy: a.maxAccuracy,
	}, true
}

// MaxAccuracy returns the best accuracy over all finished passes.
func (a *Aggregator) MaxAccuracy() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxAccuracy
}

// RestoreMax seeds the maximum, e.g. when resuming a run. Lower values than the
// current maximum are ignored.
func (a *Aggregator) RestoreMax(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxAccuracy = max(a.maxAccuracy, v)
}
