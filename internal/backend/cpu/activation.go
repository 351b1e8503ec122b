package cpu

import (
	"github.com/born-ml/adain/internal/tensor"
)

// ReLU computes max(0, x) element-wise. NaN propagates.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.Zeros(x.Shape())
	src, dst := x.Data(), out.Data()
	parallelRange(len(src), chunked(cpu), func(start, end int) {
		for i := start; i < end; i++ {
			if v := src[i]; v > 0 || v != v {
				dst[i] = v
			}
		}
	})
	return out
}

// ReLUBackward passes grad where the forward input was positive or NaN.
func (cpu *CPUBackend) ReLUBackward(input, grad *tensor.RawTensor) *tensor.RawTensor {
	requireSameShape("relu_backward", input, grad)
	out := tensor.Zeros(grad.Shape())
	x, g, dst := input.Data(), grad.Data(), out.Data()
	parallelRange(len(x), chunked(cpu), func(start, end int) {
		for i := start; i < end; i++ {
			if v := x[i]; v > 0 || v != v {
				dst[i] = g[i]
			}
		}
	})
	return out
}
