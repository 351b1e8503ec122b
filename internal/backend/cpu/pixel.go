package cpu

import (
	"fmt"

	"github.com/born-ml/adain/internal/tensor"
)

// ChannelShift adds shift[c] to every element of channel c (last axis).
// Its gradient is the identity.
func (cpu *CPUBackend) ChannelShift(x *tensor.RawTensor, shift []float32) *tensor.RawTensor {
	c := x.Shape()[len(x.Shape())-1]
	if len(shift) != c {
		panic(fmt.Sprintf("channel_shift: %d shifts for %d channels", len(shift), c))
	}
	out := x.Clone()
	data := out.Data()
	for p := 0; p < len(data); p += c {
		row := data[p : p+c]
		for i := range row {
			row[i] += shift[i]
		}
	}
	return out
}

// ReverseChannels flips the last axis (RGB ↔ BGR). It is its own inverse,
// so the same kernel serves as its backward.
func (cpu *CPUBackend) ReverseChannels(x *tensor.RawTensor) *tensor.RawTensor {
	c := x.Shape()[len(x.Shape())-1]
	out := tensor.Zeros(x.Shape())
	src, dst := x.Data(), out.Data()
	for p := 0; p < len(src); p += c {
		for i := 0; i < c; i++ {
			dst[p+i] = src[p+c-1-i]
		}
	}
	return out
}

// Clamp limits every element to [lo, hi].
func (cpu *CPUBackend) Clamp(x *tensor.RawTensor, lo, hi float32) *tensor.RawTensor {
	if lo > hi {
		panic(fmt.Sprintf("clamp: lo %v > hi %v", lo, hi))
	}
	out := tensor.Zeros(x.Shape())
	src, dst := x.Data(), out.Data()
	parallelRange(len(src), chunked(cpu), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = min(max(src[i], lo), hi)
		}
	})
	return out
}

// ClampBackward passes grad where lo <= input <= hi or input is NaN and
// zeroes it where the forward pass clipped.
func (cpu *CPUBackend) ClampBackward(input, grad *tensor.RawTensor, lo, hi float32) *tensor.RawTensor {
	requireSameShape("clamp_backward", input, grad)
	out := tensor.Zeros(grad.Shape())
	x, g, dst := input.Data(), grad.Data(), out.Data()
	parallelRange(len(x), chunked(cpu), func(start, end int) {
		for i := start; i < end; i++ {
			if v := x[i]; (v >= lo && v <= hi) || v != v {
				dst[i] = g[i]
			}
		}
	})
	return out
}

// AddScaled returns a + alpha*b for equally shaped tensors.
func (cpu *CPUBackend) AddScaled(a, b *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	requireSameShape("add_scaled", a, b)
	out := a.Clone()
	dst, src := out.Data(), b.Data()
	for i := range dst {
		dst[i] += alpha * src[i]
	}
	return out
}

// Scale returns alpha*x.
func (cpu *CPUBackend) Scale(x *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	out := tensor.Zeros(x.Shape())
	src, dst := x.Data(), out.Data()
	for i, v := range src {
		dst[i] = alpha * v
	}
	return out
}
