package knn

import (
	"fmt"
	"math"
)

// Params are the classifier hyperparameters.
type Params struct {
	Classes     int     // Classes is the number of label classes C.
	K           int     // K is the number of neighbours.
	Temperature float64 // Temperature scales similarities before exponentiation.
}

// DefaultParams returns the parameters commonly used for kNN monitoring on
// small image benchmarks: 10 classes, k=200, t=0.1.
func DefaultParams() Params {
	return Params{
		Classes:     10,
		K:           200,
		Temperature: 0.1,
	}
}

// Validate checks the parameters independently of any bank.
func (p Params) Validate() error {
	if p.Classes <= 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidClasses, p.Classes)
	}
	if p.K < 1 {
		return fmt.Errorf("%w: k=%d", ErrInvalidK, p.K)
	}
	if math.IsNaN(p.Temperature) || p.Temperature <= 0 {
		return fmt.Errorf("%w: t=%v", ErrInvalidTemperature, p.Temperature)
	}
	return nil
}
