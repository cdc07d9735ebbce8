package bank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/knnmon/matrix"
)

// BatchHook is called after each reference batch has been encoded.
// Returning an error aborts the build.
type BatchHook func(batch int) error

// Builder computes feature banks from a reference Source.
type Builder struct {
	encoder Encoder
	source  Source
	hook    BatchHook
	logger  *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBatchHook registers a hook that runs after every encoded batch.
func WithBatchHook(h BatchHook) BuilderOption {
	return func(b *Builder) {
		b.hook = h
	}
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder for encoder over source.
func NewBuilder(encoder Encoder, source Source, optFns ...BuilderOption) *Builder {
	b := &Builder{
		encoder: encoder,
		source:  source,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(b)
		}
	}
	return b
}

// Build runs the encoder over the whole reference source and returns a new
// bank. The encoder runs in eval scope and is back in training mode when
// Build returns, also on error. An empty source yields an empty bank.
func (b *Builder) Build(ctx context.Context) (*FeatureBank, error) {
	start := time.Now()

	restore := EvalScope(b.encoder)
	defer restore()

	var (
		blocks []*matrix.Dense
		labels []int
		dim    = -1
		n      int
	)

	for batch, err := range b.source.Batches(ctx) {
		if err != nil {
			return nil, fmt.Errorf("reference batch %d: %w", n, err)
		}
		if batch.Inputs == nil {
			return nil, fmt.Errorf("reference batch %d: %w", n, ErrNilInputs)
		}
		if batch.Inputs.Rows() != len(batch.Labels) {
			return nil, &ErrDimensionMismatch{What: "batch labels", Expected: batch.Inputs.Rows(), Actual: len(batch.Labels)}
		}

		emb, err := b.encoder.Encode(ctx, batch.Inputs)
		if err != nil {
			return nil, fmt.Errorf("encode reference batch %d: %w", n, err)
		}
		if emb.Rows() != len(batch.Labels) {
			return nil, &ErrDimensionMismatch{What: "embeddings per batch", Expected: len(batch.Labels), Actual: emb.Rows()}
		}
		if dim < 0 {
			dim = emb.Cols()
		} else if emb.Cols() != dim {
			return nil, &ErrDimensionMismatch{What: "embedding dimension", Expected: dim, Actual: emb.Cols()}
		}

		// Encoders may hand out internal buffers; never normalize those in place.
		emb = emb.Clone()
		if zero := emb.NormalizeRows(); len(zero) > 0 {
			b.logger.WarnContext(ctx, "zero-norm reference embeddings", "batch", n, "rows", len(zero))
		}

		blocks = append(blocks, emb)
		labels = append(labels, batch.Labels...)

		if b.hook != nil {
			if err := b.hook(n); err != nil {
				return nil, fmt.Errorf("reference batch %d: %w", n, err)
			}
		}
		n++
	}

	if len(blocks) == 0 {
		b.logger.InfoContext(ctx, "reference source is empty")
		return NewEmpty(), nil
	}

	stacked, err := matrix.ConcatRows(blocks...)
	if err != nil {
		return nil, err
	}

	fb, err := New(stacked.T(), labels)
	if err != nil {
		return nil, err
	}

	b.logger.DebugContext(ctx, "feature bank built",
		"batches", n,
		"count", fb.Len(),
		"dimension", fb.Dim(),
		"elapsed", time.Since(start),
	)
	return fb, nil
}
