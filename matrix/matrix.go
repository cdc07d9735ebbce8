// Package matrix provides a minimal dense float32 matrix backed by gonum BLAS.
//
// Matrices are row-major. Embedding batches are B×D (one sample per row) and a
// feature bank is D×N (one sample per column), so similarity between a batch and
// a bank is a single Mul.
package matrix

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/hupe1980/knnmon/distance"
)

// ErrShape is returned when matrix dimensions are incompatible.
var ErrShape = errors.New("matrix: dimension mismatch")

// Dense is a row-major float32 matrix.
type Dense struct {
	rows, cols int
	data       []float32
}

// New creates a rows×cols matrix.
// If data is nil a zeroed backing slice is allocated, otherwise data is used
// directly and must hold exactly rows*cols elements.
func New(rows, cols int, data []float32) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative dimension %dx%d", ErrShape, rows, cols)
	}
	if data == nil {
		data = make([]float32, rows*cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %dx%d needs %d elements, got %d", ErrShape, rows, cols, rows*cols, len(data))
	}
	return &Dense{rows: rows, cols: cols, data: data}, nil
}

// Zeros returns a zeroed rows×cols matrix. It panics on negative dimensions.
func Zeros(rows, cols int) *Dense {
	m, err := New(rows, cols, nil)
	if err != nil {
		panic(err)
	}
	return m
}

// FromRows copies rows into a new matrix. All rows must have the same length.
func FromRows(rows [][]float32) (*Dense, error) {
	if len(rows) == 0 {
		return Zeros(0, 0), nil
	}
	cols := len(rows[0])
	m := Zeros(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(r), cols)
		}
		copy(m.data[i*cols:], r)
	}
	return m, nil
}

// Dims returns the number of rows and columns.
func (m *Dense) Dims() (int, int) { return m.rows, m.cols }

// Rows returns the number of rows.
func (m *Dense) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense) Cols() int { return m.cols }

// At returns the element at (i, j).
func (m *Dense) At(i, j int) float32 {
	return m.data[i*m.cols+j]
}

// Set sets the element at (i, j).
func (m *Dense) Set(i, j int, v float32) {
	m.data[i*m.cols+j] = v
}

// Row returns row i as a view into the backing slice.
func (m *Dense) Row(i int) []float32 {
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// RawData returns the row-major backing slice.
func (m *Dense) RawData() []float32 { return m.data }

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	data := make([]float32, len(m.data))
	copy(data, m.data)
	return &Dense{rows: m.rows, cols: m.cols, data: data}
}

// T returns the transpose as a new matrix.
func (m *Dense) T() *Dense {
	t := Zeros(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		row := m.data[i*m.cols : (i+1)*m.cols]
		for j, v := range row {
			t.data[j*m.rows+i] = v
		}
	}
	return t
}

// NormalizeRows L2-normalizes every row in place.
// Returns the indices of rows with zero norm, which are left untouched.
func (m *Dense) NormalizeRows() []int {
	var zero []int
	for i := 0; i < m.rows; i++ {
		if !distance.NormalizeL2InPlace(m.Row(i)) {
			zero = append(zero, i)
		}
	}
	return zero
}

func (m *Dense) general() blas32.General {
	return blas32.General{
		Rows:   m.rows,
		Cols:   m.cols,
		Stride: max(1, m.cols),
		Data:   m.data,
	}
}

// Mul returns a·b.
func Mul(a, b *Dense) (*Dense, error) {
	if a.cols != b.rows {
		return nil, fmt.Errorf("%w: cannot multiply %dx%d by %dx%d", ErrShape, a.rows, a.cols, b.rows, b.cols)
	}
	c := Zeros(a.rows, b.cols)
	if a.rows == 0 || b.cols == 0 || a.cols == 0 {
		return c, nil
	}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a.general(), b.general(), 0, c.general())
	return c, nil
}

// ConcatRows stacks matrices vertically. All inputs must have the same column count.
func ConcatRows(ms ...*Dense) (*Dense, error) {
	if len(ms) == 0 {
		return Zeros(0, 0), nil
	}
	cols := ms[0].cols
	rows := 0
	for i, m := range ms {
		if m.cols != cols {
			return nil, fmt.Errorf("%w: block %d has %d columns, want %d", ErrShape, i, m.cols, cols)
		}
		rows += m.rows
	}
	out := Zeros(rows, cols)
	off := 0
	for _, m := range ms {
		off += copy(out.data[off:], m.data)
	}
	return out, nil
}
