package knn

import (
	"context"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/matrix"
)

// Classifier classifies embedding batches against feature banks.
// A Classifier is safe for concurrent use.
type Classifier struct {
	params      Params
	parallelism int
	logger      *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithParallelism splits the query rows of each batch across n goroutines.
// Values below 2 classify sequentially.
func WithParallelism(n int) Option {
	return func(c *Classifier) {
		c.parallelism = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClassifier returns a Classifier for the given parameters.
func NewClassifier(p Params, optFns ...Option) (*Classifier, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		params:      p,
		parallelism: 1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(c)
		}
	}
	return c, nil
}

// Params returns the classifier parameters.
func (c *Classifier) Params() Params { return c.params }

type classifyOptions struct {
	exclude *roaring.Bitmap
}

// ClassifyOption configures a single Classify call.
type ClassifyOption func(*classifyOptions)

// WithExclusions hides the given bank columns from neighbour selection.
// k must not exceed the number of columns left.
func WithExclusions(columns *roaring.Bitmap) ClassifyOption {
	return func(o *classifyOptions) {
		o.exclude = columns
	}
}

// Classify ranks the classes for every row of queries (B×D, L2-normalized)
// against fb.
func (c *Classifier) Classify(ctx context.Context, queries *matrix.Dense, fb *bank.FeatureBank, optFns ...ClassifyOption) (*Predictions, error) {
	if fb == nil || fb.Empty() {
		return nil, ErrEmptyBank
	}
	var o classifyOptions
	for _, fn := range optFns {
		fn(&o)
	}

	start := time.Now()
	labels := fb.RawLabels()

	sims, err := similarities(queries, fb.Features(), labels, c.params, o.exclude)
	if err != nil {
		return nil, err
	}

	rows := sims.Rows()
	out := newPredictions(rows)

	workers := min(c.parallelism, rows)
	if workers < 2 {
		s := newScorer(c.params, fb.Len())
		for i := 0; i < rows; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out.Ranks[i], out.Scores[i] = s.rank(sims.Row(i), labels, o.exclude)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		chunk := (rows + workers - 1) / workers
		for lo := 0; lo < rows; lo += chunk {
			hi := min(lo+chunk, rows)
			g.Go(func() error {
				s := newScorer(c.params, fb.Len())
				for i := lo; i < hi; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					out.Ranks[i], out.Scores[i] = s.rank(sims.Row(i), labels, o.exclude)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	c.logger.DebugContext(ctx, "classified batch",
		"queries", rows,
		"bank", fb.Len(),
		"k", c.params.K,
		"workers", max(workers, 1),
		"elapsed", time.Since(start),
	)
	return out, nil
}
