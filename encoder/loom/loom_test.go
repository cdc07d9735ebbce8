package loom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/ema"
	"github.com/hupe1980/knnmon/matrix"
	"github.com/hupe1980/knnmon/testutil"
)

var (
	_ bank.Encoder    = (*Encoder)(nil)
	_ bank.ModeSetter = (*Encoder)(nil)
	_ ema.Params      = (*Encoder)(nil)
)

func inputs(t *testing.T, rows, dim int) *matrix.Dense {
	t.Helper()
	rng := testutil.NewRNG(7)
	m, err := matrix.FromRows(rng.UniformVectors(rows, dim))
	require.NoError(t, err)
	return m
}

func TestNewMLP(t *testing.T) {
	_, err := NewMLP(4)
	assert.Error(t, err)

	_, err = NewMLP(4, 0)
	assert.Error(t, err)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNilNetwork)
}

func TestEncode(t *testing.T) {
	enc, err := NewMLP(4, 8, 3)
	require.NoError(t, err)

	out, err := enc.Encode(context.Background(), inputs(t, 5, 4))
	require.NoError(t, err)
	assert.Equal(t, 5, out.Rows())
	assert.Equal(t, 3, out.Cols())

	empty, err := enc.Encode(context.Background(), matrix.Zeros(0, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Rows())
}

func TestEncodeCanceled(t *testing.T) {
	enc, err := NewMLP(4, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = enc.Encode(ctx, inputs(t, 2, 4))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvalScope(t *testing.T) {
	enc, err := NewMLP(4, 3)
	require.NoError(t, err)
	require.True(t, enc.Training())

	restore := bank.EvalScope(enc)
	assert.False(t, enc.Training())
	restore()
	assert.True(t, enc.Training())
}

func TestParametersBlend(t *testing.T) {
	online, err := NewMLP(4, 6, 3)
	require.NoError(t, err)
	target, err := NewMLP(4, 6, 3)
	require.NoError(t, err)

	params := online.Parameters()
	require.NotEmpty(t, params)
	require.Len(t, target.Parameters(), len(params))

	require.NoError(t, ema.Copy(target, online))

	x := inputs(t, 3, 4)
	a, err := online.Encode(context.Background(), x)
	require.NoError(t, err)
	b, err := target.Encode(context.Background(), x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.RawData(), b.RawData(), 1e-6)

	// Parameters alias the network storage.
	params[0][0] += 1
	assert.Equal(t, params[0][0], online.Parameters()[0][0])
}
