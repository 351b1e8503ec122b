package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/adain/internal/parallel"
	"github.com/born-ml/adain/internal/tensor"
)

func randomTensor(rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	raw := tensor.Zeros(shape)
	for i := range raw.Data() {
		raw.Data()[i] = float32(rng.NormFloat64())
	}
	return raw
}

// naiveConv2D is the direct 6-loop convolution used as a reference.
func naiveConv2D(x, k *tensor.RawTensor) *tensor.RawTensor {
	n, h, w, cIn := x.Dims4()
	ks := k.Shape()
	kh, kw, cOut := ks[0], ks[1], ks[3]
	out := tensor.Zeros(tensor.Shape{n, h - kh + 1, w - kw + 1, cOut})
	for b := 0; b < n; b++ {
		for i := 0; i < h-kh+1; i++ {
			for j := 0; j < w-kw+1; j++ {
				for o := 0; o < cOut; o++ {
					var sum float32
					for di := 0; di < kh; di++ {
						for dj := 0; dj < kw; dj++ {
							for c := 0; c < cIn; c++ {
								sum += x.At(b, i+di, j+dj, c) * k.At(di, dj, c, o)
							}
						}
					}
					out.Set(sum, b, i, j, o)
				}
			}
		}
	}
	return out
}

func TestConv2DMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := randomTensor(rng, tensor.Shape{2, 7, 6, 3})
	k := randomTensor(rng, tensor.Shape{3, 3, 3, 5})

	for _, cfg := range []parallel.Config{parallel.Sequential(), parallel.DefaultConfig()} {
		got := NewWithConfig(cfg).Conv2D(x, k)
		want := naiveConv2D(x, k)
		require.Equal(t, tensor.Shape{2, 5, 4, 5}, got.Shape())
		assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-4)
	}
}

func TestConv2DPanicsOnChannelMismatch(t *testing.T) {
	cpu := New()
	x := tensor.Zeros(tensor.Shape{1, 4, 4, 2})
	k := tensor.Zeros(tensor.Shape{3, 3, 3, 1})
	assert.Panics(t, func() { cpu.Conv2D(x, k) })
}

// TestConv2DBackwardFiniteDifference checks both conv gradients against
// central differences of L = Σ w ⊙ conv(x, k).
func TestConv2DBackwardFiniteDifference(t *testing.T) {
	cpu := NewWithConfig(parallel.Sequential())
	rng := rand.New(rand.NewSource(2))
	x := randomTensor(rng, tensor.Shape{1, 4, 5, 2})
	k := randomTensor(rng, tensor.Shape{3, 3, 2, 3})
	weights := randomTensor(rng, tensor.Shape{1, 2, 3, 3})

	loss := func(x, k *tensor.RawTensor) float64 {
		out := cpu.Conv2D(x, k)
		var s float64
		for i, v := range out.Data() {
			s += float64(v * weights.Data()[i])
		}
		return s
	}

	dx := cpu.Conv2DInputBackward(x, k, weights)
	dk := cpu.Conv2DKernelBackward(x, k, weights)

	numX := numericGrad(x, func(p *tensor.RawTensor) float64 { return loss(p, k) })
	numK := numericGrad(k, func(p *tensor.RawTensor) float64 { return loss(x, p) })
	assert.InDeltaSlice(t, numX, toFloat64(dx.Data()), 1e-2)
	assert.InDeltaSlice(t, numK, toFloat64(dk.Data()), 1e-2)
}

func numericGrad(x *tensor.RawTensor, f func(*tensor.RawTensor) float64) []float64 {
	probe := x.Clone()
	return fd.Gradient(nil, func(v []float64) float64 {
		for i := range v {
			probe.Data()[i] = float32(v[i])
		}
		return f(probe)
	}, toFloat64(x.Data()), &fd.Settings{Formula: fd.Central, Step: 1e-2})
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func TestBiasAddAndBackward(t *testing.T) {
	cpu := New()
	x := tensor.Zeros(tensor.Shape{2, 2, 2, 3})
	bias, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3})
	out := cpu.BiasAdd(x, bias)
	assert.Equal(t, float32(3), out.At(1, 1, 0, 2))

	grad := tensor.Full(tensor.Shape{2, 2, 2, 3}, 0.5)
	assert.Equal(t, []float32{4, 4, 4}, cpu.BiasBackward(grad).Data())
}

func TestReflectPad(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 3, 3, 1})

	out := cpu.ReflectPad(x, 1)
	want := []float32{
		5, 4, 5, 6, 5,
		2, 1, 2, 3, 2,
		5, 4, 5, 6, 5,
		8, 7, 8, 9, 8,
		5, 4, 5, 6, 5,
	}
	require.Equal(t, tensor.Shape{1, 5, 5, 1}, out.Shape())
	assert.Equal(t, want, out.Data())

	assert.Panics(t, func() { cpu.ReflectPad(tensor.Zeros(tensor.Shape{1, 1, 4, 1}), 1) })
}

func TestReflectPadBackwardIsAdjoint(t *testing.T) {
	// <pad(x), g> == <x, padᵀ(g)> for any x, g.
	cpu := New()
	rng := rand.New(rand.NewSource(3))
	x := randomTensor(rng, tensor.Shape{2, 4, 3, 2})
	g := randomTensor(rng, tensor.Shape{2, 6, 5, 2})

	lhs := dot(cpu.ReflectPad(x, 1).Data(), g.Data())
	rhs := dot(x.Data(), cpu.ReflectPadBackward(g, 1).Data())
	assert.InDelta(t, lhs, rhs, 1e-3)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestReLU(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{-1, 0, 2, -3}, tensor.Shape{4})
	assert.Equal(t, []float32{0, 0, 2, 0}, cpu.ReLU(x).Data())

	g := tensor.Full(tensor.Shape{4}, 1)
	assert.Equal(t, []float32{0, 0, 1, 0}, cpu.ReLUBackward(x, g).Data())
}

func TestReLUPropagatesNonFinite(t *testing.T) {
	cpu := New()
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	x, _ := tensor.FromSlice([]float32{nan, inf, -1, 2}, tensor.Shape{4})

	out := cpu.ReLU(x).Data()
	assert.True(t, math.IsNaN(float64(out[0])))
	assert.Equal(t, []float32{inf, 0, 2}, out[1:])

	g := tensor.Full(tensor.Shape{4}, 3)
	assert.Equal(t, []float32{3, 3, 0, 3}, cpu.ReLUBackward(x, g).Data())
}

func TestMaxPool2D(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, tensor.Shape{1, 4, 4, 1})

	out, argmax := cpu.MaxPool2D(x)
	assert.Equal(t, []float32{6, 8, 14, 16}, out.Data())
	assert.Equal(t, []int32{5, 7, 13, 15}, argmax)

	grad, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2, 1})
	dx := cpu.MaxPool2DBackward(x.Shape(), grad, argmax)
	assert.Equal(t, float32(1), dx.At(0, 1, 1, 0))
	assert.Equal(t, float32(4), dx.At(0, 3, 3, 0))
	assert.Equal(t, float32(0), dx.At(0, 0, 0, 0))
}

func TestMaxPool2DSamePaddingOddSize(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 3, 3, 1})

	out, _ := cpu.MaxPool2D(x)
	require.Equal(t, tensor.Shape{1, 2, 2, 1}, out.Shape())
	assert.Equal(t, []float32{5, 6, 8, 9}, out.Data())
}

func TestClampPropagatesNaN(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{float32(math.NaN()), 300}, tensor.Shape{2})
	out := cpu.Clamp(x, 0, 255).Data()
	assert.True(t, math.IsNaN(float64(out[0])))
	assert.Equal(t, float32(255), out[1])

	g := tensor.Full(tensor.Shape{2}, 1)
	assert.Equal(t, []float32{1, 0}, cpu.ClampBackward(x, g, 0, 255).Data())
}

func TestMaxPool2DPropagatesNaN(t *testing.T) {
	cpu := New()
	nan := float32(math.NaN())
	x, _ := tensor.FromSlice([]float32{
		1, nan, 3, 4,
		5, 6, 7, 8,
	}, tensor.Shape{1, 2, 4, 1})

	out, argmax := cpu.MaxPool2D(x)
	assert.True(t, math.IsNaN(float64(out.Data()[0])))
	assert.Equal(t, float32(8), out.Data()[1])
	assert.Equal(t, []int32{1, 7}, argmax)
}

func TestUpsampleNearest(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 2, 1})
	out := cpu.UpsampleNearest(x, 2)
	require.Equal(t, tensor.Shape{1, 4, 4, 1}, out.Shape())
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, out.Data())

	back := cpu.UpsampleNearestBackward(tensor.Full(out.Shape(), 1), 2)
	assert.Equal(t, []float32{4, 4, 4, 4}, back.Data())
}

func TestPixelOps(t *testing.T) {
	cpu := New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3, -10, 300, 5}, tensor.Shape{1, 1, 2, 3})

	assert.Equal(t, []float32{3, 2, 1, 5, 300, -10}, cpu.ReverseChannels(x).Data())
	assert.Equal(t, []float32{11, 22, 33, 0, 320, 35}, cpu.ChannelShift(x, []float32{10, 20, 30}).Data())
	assert.Equal(t, []float32{1, 2, 3, 0, 255, 5}, cpu.Clamp(x, 0, 255).Data())

	g := tensor.Full(x.Shape(), 1)
	assert.Equal(t, []float32{1, 1, 1, 0, 0, 1}, cpu.ClampBackward(x, g, 0, 255).Data())
	assert.Equal(t, []float32{3, 6, 9, -30, 900, 15}, cpu.AddScaled(x, x, 2).Data())
}

func TestMomentsMatchGonum(t *testing.T) {
	cpu := New()
	rng := rand.New(rand.NewSource(4))
	x := randomTensor(rng, tensor.Shape{2, 5, 4, 3})
	mean, variance := cpu.Moments(x)

	for b := 0; b < 2; b++ {
		for c := 0; c < 3; c++ {
			var plane []float64
			for i := 0; i < 5; i++ {
				for j := 0; j < 4; j++ {
					plane = append(plane, float64(x.At(b, i, j, c)))
				}
			}
			m, v := stat.PopMeanVariance(plane, nil)
			assert.InDelta(t, m, float64(mean.At(b, c)), 1e-5)
			assert.InDelta(t, v, float64(variance.At(b, c)), 1e-5)
		}
	}
}

func TestAdaINMatchesStyleStatistics(t *testing.T) {
	cpu := New()
	rng := rand.New(rand.NewSource(5))
	content := randomTensor(rng, tensor.Shape{2, 6, 6, 4})
	style := randomTensor(rng, tensor.Shape{2, 3, 5, 4})
	for i := range style.Data() {
		style.Data()[i] = style.Data()[i]*3 + 7
	}

	out := cpu.AdaIN(style, content, 1e-5)
	require.Equal(t, content.Shape(), out.Shape())

	oMean, oVar := cpu.Moments(out)
	sMean, sVar := cpu.Moments(style)
	for i := range oMean.Data() {
		assert.InDelta(t, sMean.Data()[i], oMean.Data()[i], 1e-4)
		oStd := math.Sqrt(float64(oVar.Data()[i]) + 1e-5)
		sStd := math.Sqrt(float64(sVar.Data()[i]) + 1e-5)
		assert.InDelta(t, sStd, oStd, 1e-3)
	}
}

func TestLossKernels(t *testing.T) {
	cpu := New()
	a := tensor.Full(tensor.Shape{1, 2, 2, 2}, 3)
	b := tensor.Full(tensor.Shape{1, 2, 2, 2}, 1)

	// 2 channels × mean((3-1)²) = 8
	assert.InDelta(t, 8, cpu.ContentLoss(a, b).Item(), 1e-6)
	assert.InDelta(t, 0, cpu.ContentLoss(a, a).Item(), 1e-6)

	// Constant maps: σ = sqrt(eps) on both sides, means differ by 2 per channel.
	assert.InDelta(t, 8, cpu.StyleLoss(a, b, 1e-5).Item(), 1e-5)
	assert.InDelta(t, 0, cpu.StyleLoss(a, a, 1e-5).Item(), 1e-6)
}
