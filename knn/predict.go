package knn

import (
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/internal/topk"
	"github.com/hupe1980/knnmon/matrix"
)

// Predict classifies the rows of queries (B×D) against a bank given as its
// feature matrix (D×N) and labels (N). Neither input is modified.
//
// Queries and features are expected to be L2-normalized so that the dot
// product equals cosine similarity; Predict itself does not normalize.
func Predict(queries, features *matrix.Dense, labels []int, p Params) (*Predictions, error) {
	sims, err := similarities(queries, features, labels, p, nil)
	if err != nil {
		return nil, err
	}

	out := newPredictions(sims.Rows())
	s := newScorer(p, features.Cols())
	for i := 0; i < sims.Rows(); i++ {
		out.Ranks[i], out.Scores[i] = s.rank(sims.Row(i), labels, nil)
	}
	return out, nil
}

// similarities validates the inputs and returns S = Q·F.
func similarities(queries, features *matrix.Dense, labels []int, p Params, exclude *roaring.Bitmap) (*matrix.Dense, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if queries == nil || features == nil {
		return nil, bank.ErrNilInputs
	}
	n := features.Cols()
	if n == 0 || len(labels) == 0 {
		return nil, ErrEmptyBank
	}
	if len(labels) != n {
		return nil, &bank.ErrDimensionMismatch{What: "bank labels", Expected: n, Actual: len(labels)}
	}
	if queries.Cols() != features.Rows() {
		return nil, &bank.ErrDimensionMismatch{What: "embedding dimension", Expected: features.Rows(), Actual: queries.Cols()}
	}
	for j, l := range labels {
		if l < 0 || l >= p.Classes {
			return nil, fmt.Errorf("%w: label %d at column %d, classes=%d", ErrLabelOutOfRange, l, j, p.Classes)
		}
	}

	eligible := n
	if exclude != nil && !exclude.IsEmpty() {
		eligible -= int(exclude.Rank(uint32(n - 1)))
	}
	if p.K > eligible {
		return nil, fmt.Errorf("%w: k=%d exceeds %d eligible bank columns", ErrInvalidK, p.K, eligible)
	}

	return matrix.Mul(queries, features)
}

func newPredictions(rows int) *Predictions {
	return &Predictions{
		Ranks:  make([][]int, rows),
		Scores: make([][]float64, rows),
	}
}

// scorer holds the per-goroutine scratch state for ranking rows.
type scorer struct {
	params Params
	queue  *topk.Queue
	items  []topk.Item
}

func newScorer(p Params, n int) *scorer {
	return &scorer{
		params: p,
		queue:  topk.New(p.K),
		items:  make([]topk.Item, 0, min(p.K, n)),
	}
}

// rank selects the k most similar columns of one similarity row, votes with
// exp(s/t) weights and returns the ranked classes and per-class scores.
func (s *scorer) rank(row []float32, labels []int, exclude *roaring.Bitmap) ([]int, []float64) {
	s.queue.Reset(s.params.K)
	for j, sim := range row {
		if exclude != nil && exclude.Contains(uint32(j)) {
			continue
		}
		s.queue.Push(topk.Item{Index: j, Score: sim})
	}
	s.items = s.queue.Drain(s.items)

	scores := make([]float64, s.params.Classes)
	for _, it := range s.items {
		scores[labels[it.Index]] += math.Exp(float64(it.Score) / s.params.Temperature)
	}

	ranks := make([]int, s.params.Classes)
	for c := range ranks {
		ranks[c] = c
	}
	// Stable sort keeps ascending class order among equal scores.
	slices.SortStableFunc(ranks, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})
	return ranks, scores
}
