package distance

import (
	"errors"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"
)

// ErrLengthMismatch is returned when two vectors have different lengths.
var ErrLengthMismatch = errors.New("vector sizes do not match")

func vec(v []float32) blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return blas32.Dot(vec(a), vec(b))
}

// Norm returns the Euclidean (L2) norm of v.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return blas32.Nrm2(vec(v))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	norm := Norm(v)
	if norm == 0 {
		return false
	}
	blas32.Scal(1/norm, vec(v))
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Cosine calculates the cosine similarity a·b / (|a||b|) of two vectors that
// need not be normalized. Zero vectors have similarity 0.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}

	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}

	return Dot(a, b) / (na * nb), nil
}
