package bank

import (
	"context"
	"errors"

	"github.com/hupe1980/knnmon/matrix"
)

var errEncode = errors.New("encode failed")

// scaleEncoder doubles its inputs and records the mode it was called in.
type scaleEncoder struct {
	training     bool
	gradsOn      bool
	calls        int
	failAt       int
	sawTraining  bool
	sawGradients bool
	panicAt      int
}

func newScaleEncoder() *scaleEncoder {
	return &scaleEncoder{training: true, gradsOn: true, failAt: -1, panicAt: -1}
}

func (e *scaleEncoder) Encode(_ context.Context, in *matrix.Dense) (*matrix.Dense, error) {
	defer func() { e.calls++ }()
	if e.training {
		e.sawTraining = true
	}
	if e.gradsOn {
		e.sawGradients = true
	}
	if e.calls == e.panicAt {
		panic("encoder exploded")
	}
	if e.calls == e.failAt {
		return nil, errEncode
	}
	out := in.Clone()
	for i, v := range out.RawData() {
		out.RawData()[i] = 2 * v
	}
	return out, nil
}

func (e *scaleEncoder) SetTraining(training bool) { e.training = training }

func (e *scaleEncoder) NoGrad() func() {
	e.gradsOn = false
	return func() { e.gradsOn = true }
}
