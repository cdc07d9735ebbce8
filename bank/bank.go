package bank

import (
	"fmt"
	"slices"

	"github.com/hupe1980/knnmon/matrix"
)

// FeatureBank is an immutable set of reference embeddings stored
// dimension-major (D×N) with one label per column.
type FeatureBank struct {
	features *matrix.Dense
	labels   []int
	epoch    int
}

// New creates a bank from a D×N feature matrix and N labels.
// The bank takes ownership of both arguments.
func New(features *matrix.Dense, labels []int) (*FeatureBank, error) {
	if features == nil {
		features = matrix.Zeros(0, 0)
	}
	if features.Cols() != len(labels) {
		return nil, &ErrDimensionMismatch{What: "bank labels", Expected: features.Cols(), Actual: len(labels)}
	}
	for j, l := range labels {
		if l < 0 {
			return nil, fmt.Errorf("%w: column %d has label %d", ErrNegativeLabel, j, l)
		}
	}
	return &FeatureBank{features: features, labels: labels}, nil
}

// NewEmpty returns a bank without any reference samples.
func NewEmpty() *FeatureBank {
	return &FeatureBank{features: matrix.Zeros(0, 0)}
}

// Dim returns the embedding dimensionality D.
func (b *FeatureBank) Dim() int { return b.features.Rows() }

// Len returns the number of reference samples N.
func (b *FeatureBank) Len() int { return len(b.labels) }

// Empty reports whether the bank has no reference samples.
func (b *FeatureBank) Empty() bool { return len(b.labels) == 0 }

// Epoch returns the training epoch the bank was built at.
func (b *FeatureBank) Epoch() int { return b.epoch }

// WithEpoch returns a copy of the bank tagged with epoch. Storage is shared.
func (b *FeatureBank) WithEpoch(epoch int) *FeatureBank {
	c := *b
	c.epoch = epoch
	return &c
}

// Features returns the D×N feature matrix. It must not be modified.
func (b *FeatureBank) Features() *matrix.Dense { return b.features }

// Labels returns a copy of the label vector.
func (b *FeatureBank) Labels() []int { return slices.Clone(b.labels) }

// RawLabels returns the label vector without copying. It must not be modified.
func (b *FeatureBank) RawLabels() []int { return b.labels }

// Label returns the label of column j.
func (b *FeatureBank) Label(j int) int { return b.labels[j] }

// Column returns a copy of the embedding stored in column j.
func (b *FeatureBank) Column(j int) []float32 {
	d := b.Dim()
	col := make([]float32, d)
	for i := range d {
		col[i] = b.features.At(i, j)
	}
	return col
}
