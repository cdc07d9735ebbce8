package bank

import (
	"context"
	"iter"

	"github.com/hupe1980/knnmon/matrix"
)

// Encoder maps a batch of raw inputs (one sample per row) to embeddings of a
// fixed dimension D (one embedding per row).
type Encoder interface {
	Encode(ctx context.Context, inputs *matrix.Dense) (*matrix.Dense, error)
}

// ModeSetter is implemented by encoders that distinguish training and
// evaluation behaviour (dropout, batch statistics, ...).
type ModeSetter interface {
	SetTraining(training bool)
}

// GradientScope is implemented by encoders backed by an autodiff engine.
// NoGrad disables gradient tracking and returns a function that re-enables it.
type GradientScope interface {
	NoGrad() (restore func())
}

// EvalScope puts enc into evaluation mode with gradient tracking disabled.
// The returned function switches it back to training mode; callers defer it
// so the encoder is restored on every exit path.
func EvalScope(enc Encoder) (restore func()) {
	var undo []func()
	if gs, ok := enc.(GradientScope); ok {
		if r := gs.NoGrad(); r != nil {
			undo = append(undo, r)
		}
	}
	if ms, ok := enc.(ModeSetter); ok {
		ms.SetTraining(false)
		undo = append(undo, func() { ms.SetTraining(true) })
	}
	return func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
}

// Batch is a block of inputs with one integer label per row.
type Batch struct {
	Inputs *matrix.Dense
	Labels []int
}

// Source is a finite sequence of labeled batches that can be iterated again
// every epoch.
type Source interface {
	Batches(ctx context.Context) iter.Seq2[Batch, error]
}

// SliceSource is an in-memory Source.
type SliceSource []Batch

// Batches implements Source. Iteration stops with ctx.Err() once ctx is done.
func (s SliceSource) Batches(ctx context.Context) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		for _, b := range s {
			if err := ctx.Err(); err != nil {
				yield(Batch{}, err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

// Split cuts rows and labels into batches of at most size rows.
func Split(rows [][]float32, labels []int, size int) (SliceSource, error) {
	if len(rows) != len(labels) {
		return nil, &ErrDimensionMismatch{What: "batch labels", Expected: len(rows), Actual: len(labels)}
	}
	if size <= 0 {
		size = len(rows)
	}
	var out SliceSource
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		m, err := matrix.FromRows(rows[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, Batch{Inputs: m, Labels: append([]int(nil), labels[start:end]...)})
	}
	return out, nil
}
