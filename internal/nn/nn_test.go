package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

func TestGlorotUniformBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := GlorotUniform(rng, 9*64, 9*3, tensor.Shape{3, 3, 64, 3})
	bound := float32(math.Sqrt(6.0 / float64(9*64+9*3)))

	var nonZero int
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
		if v != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, w.NumElements()/2)
}

func TestNewConvStageValidatesShapes(t *testing.T) {
	_, err := NewConvStage("bad", tensor.Zeros(tensor.Shape{1, 1, 3, 4}), tensor.Zeros(tensor.Shape{4}), false, true)
	require.Error(t, err)

	_, err = NewConvStage("bad", tensor.Zeros(tensor.Shape{3, 3, 3, 4}), tensor.Zeros(tensor.Shape{5}), false, true)
	require.Error(t, err)

	s, err := NewConvStage("conv1_1", tensor.Zeros(tensor.Shape{3, 3, 3, 4}), tensor.Zeros(tensor.Shape{4}), false, true)
	require.NoError(t, err)
	assert.Equal(t, 3, s.InChannels())
	assert.Equal(t, 4, s.OutChannels())
	assert.Empty(t, s.Parameters())
	assert.Equal(t, "conv1_1.kernel", s.Kernel.Name())
}

func TestConvStageForwardPreservesSpatialSize(t *testing.T) {
	b := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(2))
	s := NewGlorotConvStage(rng, "conv", 2, 5, true)

	out, err := s.Forward(b, tensor.Full(tensor.Shape{2, 6, 4, 2}, 1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 6, 4, 5}, out.Shape())
	for _, v := range out.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}
	assert.Len(t, s.Parameters(), 2)

	_, err = s.Forward(b, tensor.Full(tensor.Shape{1, 6, 4, 3}, 1))
	require.Error(t, err)
	_, err = s.Forward(b, tensor.Full(tensor.Shape{1, 1, 4, 2}, 1))
	require.Error(t, err)
}

func TestCollectGrads(t *testing.T) {
	b := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))
	s := NewGlorotConvStage(rng, "conv", 1, 1, false)
	for _, p := range s.Parameters() {
		b.Watch(p.Tensor())
	}
	b.Tape().StartRecording()

	out, err := s.Forward(b, tensor.Full(tensor.Shape{1, 3, 3, 1}, 1))
	require.NoError(t, err)
	grads := b.Backward(b.ContentLoss(out, tensor.Zeros(out.Shape())))

	CollectGrads(s.Parameters(), grads)
	require.NotNil(t, s.Kernel.Grad())
	require.NotNil(t, s.Bias.Grad())
	assert.Equal(t, s.Kernel.Tensor().Shape(), s.Kernel.Grad().Shape())
	assert.True(t, GradsFinite(s.Parameters()))

	s.Bias.Grad().Data()[0] = float32(math.NaN())
	assert.False(t, GradsFinite(s.Parameters()))

	s.Bias.ZeroGrad()
	assert.Nil(t, s.Bias.Grad())
}
