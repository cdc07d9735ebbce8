// Package loom adapts github.com/openfluke/loom networks to the encoder and
// parameter interfaces used by the bank builder and the BYOL learner.
package loom

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openfluke/loom/nn"

	"github.com/hupe1980/knnmon/matrix"
)

// ErrNilNetwork is returned when no network is supplied.
var ErrNilNetwork = errors.New("loom: nil network")

// Encoder runs a loom network row by row on the CPU.
//
// The network keeps per-forward activation state, so calls are serialized.
type Encoder struct {
	mu       sync.Mutex
	net      *nn.Network
	training bool
}

// New wraps net. The encoder starts in training mode.
func New(net *nn.Network) (*Encoder, error) {
	if net == nil {
		return nil, ErrNilNetwork
	}
	return &Encoder{net: net, training: true}, nil
}

// NewMLP builds a fully connected network with tanh activations.
// sizes lists the input width followed by the width of every layer.
func NewMLP(sizes ...int) (*Encoder, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("loom: need at least input and output size, got %d sizes", len(sizes))
	}
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("loom: size %d is %d, must be positive", i, s)
		}
	}

	layers := len(sizes) - 1
	net := nn.NewNetwork(sizes[0], 1, 1, layers)
	net.BatchSize = 1
	for i := 0; i < layers; i++ {
		net.SetLayer(0, 0, i, nn.InitDenseLayer(sizes[i], sizes[i+1], nn.ActivationTanh))
	}
	net.InitializeWeights()
	return New(net)
}

// Network returns the wrapped network.
func (e *Encoder) Network() *nn.Network { return e.net }

// Encode implements bank.Encoder.
func (e *Encoder) Encode(ctx context.Context, inputs *matrix.Dense) (*matrix.Dense, error) {
	if inputs == nil {
		return nil, errors.New("loom: nil inputs")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rows := inputs.Rows()
	var (
		out  []float32
		cols = -1
	)
	for i := 0; i < rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := append([]float32(nil), inputs.Row(i)...)
		y, _ := e.net.ForwardCPU(in)
		if cols < 0 {
			cols = len(y)
			out = make([]float32, 0, rows*cols)
		}
		if len(y) != cols {
			return nil, fmt.Errorf("loom: row %d produced %d outputs, want %d", i, len(y), cols)
		}
		out = append(out, y...)
	}
	if cols < 0 {
		cols = 0
	}
	return matrix.New(rows, cols, out)
}

// SetTraining implements bank.ModeSetter.
// Dense loom layers behave the same in both modes; the flag is tracked so
// callers can observe it.
func (e *Encoder) SetTraining(training bool) {
	e.mu.Lock()
	e.training = training
	e.mu.Unlock()
}

// Training reports the current mode.
func (e *Encoder) Training() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.training
}

// Parameters implements ema.Params. The returned slices alias the layer
// kernels and biases, including those of parallel branches.
func (e *Encoder) Parameters() [][]float32 {
	var out [][]float32
	for i := range e.net.Layers {
		out = appendParams(out, &e.net.Layers[i])
	}
	return out
}

func appendParams(out [][]float32, l *nn.LayerConfig) [][]float32 {
	if len(l.Kernel) > 0 {
		out = append(out, l.Kernel)
	}
	if len(l.Bias) > 0 {
		out = append(out, l.Bias)
	}
	for i := range l.ParallelBranches {
		out = appendParams(out, &l.ParallelBranches[i])
	}
	return out
}
