package knnmon

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/byol"
)

// ViewSource yields the augmented view pairs of one training epoch.
type ViewSource interface {
	Views(ctx context.Context) iter.Seq2[byol.Views, error]
}

// ViewSlice is an in-memory ViewSource.
type ViewSlice []byol.Views

// Views implements ViewSource.
func (s ViewSlice) Views(ctx context.Context) iter.Seq2[byol.Views, error] {
	return func(yield func(byol.Views, error) bool) {
		for _, v := range s {
			if err := ctx.Err(); err != nil {
				yield(byol.Views{}, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// FitConfig drives Fit.
type FitConfig struct {
	Epochs     int
	Learner    *byol.Learner
	Train      ViewSource
	Validation bank.Source // optional
}

// FitResult summarizes a Fit run.
type FitResult struct {
	Epochs      int
	Steps       int64
	LastLoss    float64
	MaxAccuracy float64
}

// Fit runs cfg.Epochs epochs in the order a training framework calls the
// hooks: all training steps, then a validation pass against the bank of the
// previous epoch, then TrainingEpochEnd. The first pass is therefore skipped.
func (m *Monitor) Fit(ctx context.Context, cfg FitConfig) (FitResult, error) {
	if cfg.Learner == nil || cfg.Train == nil {
		return FitResult{}, errors.New("learner and training views are required")
	}
	if cfg.Epochs < 1 {
		return FitResult{}, fmt.Errorf("epochs must be positive, got %d", cfg.Epochs)
	}

	var res FitResult
	for e := 0; e < cfg.Epochs; e++ {
		log := m.opts.logger.WithEpoch(m.Epoch())

		for v, err := range cfg.Train.Views(ctx) {
			if err != nil {
				return res, fmt.Errorf("training views: %w", err)
			}
			start := time.Now()
			step, err := cfg.Learner.TrainingStep(ctx, v)
			m.opts.metricsCollector.RecordTrainStep(time.Since(start), err)
			if err != nil {
				return res, err
			}
			res.Steps = step.Step
			res.LastLoss = step.Loss
		}

		if cfg.Validation != nil {
			for b, err := range cfg.Validation.Batches(ctx) {
				if err != nil {
					m.DiscardValidation()
					return res, fmt.Errorf("validation batches: %w", err)
				}
				if _, ok, err := m.ValidationStep(ctx, b); err != nil {
					m.DiscardValidation()
					return res, err
				} else if !ok {
					log.DebugContext(ctx, "validation skipped, no bank yet")
					break
				}
			}
			if _, _, err := m.ValidationEpochEnd(ctx); err != nil {
				return res, err
			}
		}

		if err := m.TrainingEpochEnd(ctx); err != nil {
			return res, err
		}
		res.Epochs++
	}

	res.MaxAccuracy = m.MaxAccuracy()
	return res, nil
}
