package autodiff

import (
	"github.com/born-ml/adain/internal/autodiff/ops"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// Backend wraps the CPU backend and records differentiable operations on a
// gradient tape.
//
// Forward computation always runs on the inner backend. Recording only
// happens for operations that touch a watched tensor while the tape is
// recording, so the same Backend serves training and inference.
type Backend struct {
	inner *cpu.CPUBackend
	tape  *GradientTape
}

// New creates an autodiff backend over inner.
func New(inner *cpu.CPUBackend) *Backend {
	return &Backend{
		inner: inner,
		tape:  NewGradientTape(),
	}
}

// Inner returns the wrapped CPU backend.
func (b *Backend) Inner() *cpu.CPUBackend {
	return b.inner
}

// Tape returns the gradient tape.
func (b *Backend) Tape() *GradientTape {
	return b.tape
}

// Watch marks tensors as gradient sources.
func (b *Backend) Watch(ts ...*tensor.RawTensor) {
	b.tape.Watch(ts...)
}

// NoGrad runs f with recording disabled.
func (b *Backend) NoGrad(f func()) {
	was := b.tape.IsRecording()
	b.tape.StopRecording()
	defer func() {
		if was {
			b.tape.StartRecording()
		}
	}()
	f()
}

// Backward computes gradients of loss with respect to every watched leaf.
func (b *Backend) Backward(loss *tensor.RawTensor) map[*tensor.RawTensor]*tensor.RawTensor {
	return b.tape.Backward(loss, b.inner)
}

// Conv2D performs a valid stride-1 convolution. The kernel receives a
// gradient only if it is watched.
func (b *Backend) Conv2D(input, kernel *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Conv2D(input, kernel)
	if b.tape.Tracks(input, kernel) {
		b.tape.Record(ops.NewConv2DOp(input, kernel, out, b.tape.IsWatched(kernel), b.tape.IsWatched(input)))
	}
	return out
}

// BiasAdd adds a per-channel bias.
func (b *Backend) BiasAdd(x, bias *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.BiasAdd(x, bias)
	b.tape.Record(ops.NewBiasAddOp(x, bias, out))
	return out
}

// ReflectPad mirrors p pixels onto each side of H and W.
func (b *Backend) ReflectPad(x *tensor.RawTensor, p int) *tensor.RawTensor {
	out := b.inner.ReflectPad(x, p)
	b.tape.Record(ops.NewReflectPadOp(x, out, p))
	return out
}

// ReLU applies max(0, x).
func (b *Backend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, out))
	return out
}

// MaxPool2D applies a 2×2 stride-2 SAME max-pool.
func (b *Backend) MaxPool2D(x *tensor.RawTensor) *tensor.RawTensor {
	out, argmax := b.inner.MaxPool2D(x)
	b.tape.Record(ops.NewMaxPool2DOp(x, out, argmax))
	return out
}

// UpsampleNearest repeats every pixel scale×scale times.
func (b *Backend) UpsampleNearest(x *tensor.RawTensor, scale int) *tensor.RawTensor {
	out := b.inner.UpsampleNearest(x, scale)
	b.tape.Record(ops.NewUpsampleOp(x, out, scale))
	return out
}

// ChannelShift adds a constant per-channel vector.
func (b *Backend) ChannelShift(x *tensor.RawTensor, shift []float32) *tensor.RawTensor {
	out := b.inner.ChannelShift(x, shift)
	b.tape.Record(ops.NewChannelShiftOp(x, out))
	return out
}

// ReverseChannels reverses the channel axis.
func (b *Backend) ReverseChannels(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.ReverseChannels(x)
	b.tape.Record(ops.NewReverseChannelsOp(x, out))
	return out
}

// Clamp limits x to [lo, hi].
func (b *Backend) Clamp(x *tensor.RawTensor, lo, hi float32) *tensor.RawTensor {
	out := b.inner.Clamp(x, lo, hi)
	b.tape.Record(ops.NewClampOp(x, out, lo, hi))
	return out
}

// AddScaled returns a + alpha·y.
func (b *Backend) AddScaled(a, y *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	out := b.inner.AddScaled(a, y, alpha)
	b.tape.Record(ops.NewAddScaledOp(a, y, out, alpha))
	return out
}

// AdaIN renormalizes content to the per-channel statistics of style.
func (b *Backend) AdaIN(style, content *tensor.RawTensor, eps float32) *tensor.RawTensor {
	out := b.inner.AdaIN(style, content, eps)
	b.tape.Record(ops.NewAdaINOp(style, content, out, eps))
	return out
}

// ContentLoss returns Σ_{n,c} mean_{h,w} (a − t)² as a scalar tensor.
func (b *Backend) ContentLoss(a, t *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.ContentLoss(a, t)
	b.tape.Record(ops.NewContentLossOp(a, t, out))
	return out
}

// StyleLoss returns the squared distance between the per-channel means and
// standard deviations of s and t as a scalar tensor.
func (b *Backend) StyleLoss(s, t *tensor.RawTensor, eps float32) *tensor.RawTensor {
	out := b.inner.StyleLoss(s, t, eps)
	b.tape.Record(ops.NewStyleLossOp(s, t, out, eps))
	return out
}

// Moments returns per-(sample, channel) mean and population variance.
// Not differentiable.
func (b *Backend) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	return b.inner.Moments(x)
}
