package bank

import (
	"errors"
	"fmt"
)

var (
	// ErrNilInputs is returned when a reference batch carries no input matrix.
	ErrNilInputs = errors.New("bank: batch has no inputs")

	// ErrNegativeLabel is returned when a label is below zero.
	ErrNegativeLabel = errors.New("bank: negative label")
)

// ErrDimensionMismatch reports incompatible shapes between embeddings, labels
// and the bank.
type ErrDimensionMismatch struct {
	What     string
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch (%s): expected %d, got %d", e.What, e.Expected, e.Actual)
}
