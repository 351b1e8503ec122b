package cpu

import (
	"github.com/born-ml/adain/internal/tensor"
)

// MaxPool2D performs 2×2 max pooling with stride 2 and SAME padding.
//
// Output size is ceil(H/2) × ceil(W/2); on odd sizes the last window is
// clipped to the input (equivalent to padding bottom/right with -inf).
//
// Returns the pooled tensor and, for every output element, the flat input
// index that produced it. The first maximum in row-major window order wins;
// a NaN in the window wins over any number.
//
// Example:
//
//	Input: [[1,2,3,4],    Output: [[4,6],
//	        [5,6,7,8],             [12,14]]  (window at row 0 holds 1,2,5,6)
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(x *tensor.RawTensor) (*tensor.RawTensor, []int32) {
	require4D("maxpool2d", x)
	n, h, w, c := x.Dims4()
	hOut, wOut := (h+1)/2, (w+1)/2
	out := tensor.Zeros(tensor.Shape{n, hOut, wOut, c})
	argmax := make([]int32, out.NumElements())
	src, dst := x.Data(), out.Data()

	parallelRange(n*hOut, cpu.par, func(start, end int) {
		for r := start; r < end; r++ {
			b, oh := r/hOut, r%hOut
			for ow := 0; ow < wOut; ow++ {
				o := ((b*hOut+oh)*wOut + ow) * c
				for ch := 0; ch < c; ch++ {
					best := -1
					for kh := 0; kh < 2; kh++ {
						ih := 2*oh + kh
						if ih >= h {
							break
						}
						for kw := 0; kw < 2; kw++ {
							iw := 2*ow + kw
							if iw >= w {
								break
							}
							idx := ((b*h+ih)*w+iw)*c + ch
							if best < 0 || src[idx] > src[best] || (src[idx] != src[idx] && src[best] == src[best]) {
								best = idx
							}
						}
					}
					dst[o+ch] = src[best]
					argmax[o+ch] = int32(best)
				}
			}
		}
	})
	return out, argmax
}

// MaxPool2DBackward routes each output gradient to the input position that
// won the forward max; all other window positions receive zero.
func (cpu *CPUBackend) MaxPool2DBackward(inputShape tensor.Shape, grad *tensor.RawTensor, argmax []int32) *tensor.RawTensor {
	if len(argmax) != grad.NumElements() {
		panic("maxpool2d_backward: argmax length does not match gradient")
	}
	out := tensor.Zeros(inputShape)
	dst := out.Data()
	// Windows do not overlap (stride == kernel), so each input index is hit
	// at most once and the scatter is race-free.
	g := grad.Data()
	parallelRange(len(g), chunked(cpu), func(start, end int) {
		for i := start; i < end; i++ {
			dst[argmax[i]] += g[i]
		}
	})
	return out
}
