package knnmon

import (
	"errors"
	"fmt"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/knn"
	"github.com/hupe1980/knnmon/matrix"
)

var (
	// ErrInvalidK is returned when k is below 1 or exceeds the bank size.
	ErrInvalidK = knn.ErrInvalidK

	// ErrInvalidTemperature is returned when the temperature is not positive.
	ErrInvalidTemperature = knn.ErrInvalidTemperature

	// ErrInvalidClasses is returned when fewer than two classes are configured.
	ErrInvalidClasses = knn.ErrInvalidClasses

	// ErrEmptyBank is returned when classifying against an empty bank.
	ErrEmptyBank = knn.ErrEmptyBank

	// ErrLabelOutOfRange is returned when a label is outside [0, classes).
	ErrLabelOutOfRange = knn.ErrLabelOutOfRange

	// ErrNoBank is returned by Classify before the first bank is published.
	ErrNoBank = errors.New("no feature bank published")

	// ErrClosed is returned by hooks called after Close.
	ErrClosed = errors.New("monitor is closed")
)

// ErrDimensionMismatch indicates incompatible shapes between inputs,
// embeddings, labels and the bank.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	What     string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	if e.What == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch (%s): expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *bank.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{What: dm.What, Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, matrix.ErrShape) {
		return &ErrDimensionMismatch{What: "matrix shape", cause: err}
	}

	return err
}
