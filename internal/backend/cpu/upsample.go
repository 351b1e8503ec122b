package cpu

import (
	"fmt"

	"github.com/born-ml/adain/internal/tensor"
)

// UpsampleNearest repeats every pixel into a scale×scale block.
func (cpu *CPUBackend) UpsampleNearest(x *tensor.RawTensor, scale int) *tensor.RawTensor {
	require4D("upsample_nearest", x)
	if scale < 1 {
		panic(fmt.Sprintf("upsample_nearest: invalid scale %d", scale))
	}
	n, h, w, c := x.Dims4()
	ho, wo := h*scale, w*scale
	out := tensor.Zeros(tensor.Shape{n, ho, wo, c})
	src, dst := x.Data(), out.Data()

	parallelRange(n*ho, cpu.par, func(start, end int) {
		for r := start; r < end; r++ {
			b, i := r/ho, r%ho
			for j := 0; j < wo; j++ {
				s := ((b*h+i/scale)*w + j/scale) * c
				d := ((b*ho+i)*wo + j) * c
				copy(dst[d:d+c], src[s:s+c])
			}
		}
	})
	return out
}

// UpsampleNearestBackward sums each scale×scale gradient block.
func (cpu *CPUBackend) UpsampleNearestBackward(grad *tensor.RawTensor, scale int) *tensor.RawTensor {
	require4D("upsample_nearest_backward", grad)
	n, ho, wo, c := grad.Dims4()
	if ho%scale != 0 || wo%scale != 0 {
		panic(fmt.Sprintf("upsample_nearest_backward: %dx%d not divisible by %d", ho, wo, scale))
	}
	h, w := ho/scale, wo/scale
	out := tensor.Zeros(tensor.Shape{n, h, w, c})
	src, dst := grad.Data(), out.Data()

	parallelRange(n*h, cpu.par, func(start, end int) {
		for r := start; r < end; r++ {
			b, i := r/h, r%h
			for j := 0; j < w; j++ {
				d := dst[((b*h+i)*w+j)*c : ((b*h+i)*w+j+1)*c]
				for di := 0; di < scale; di++ {
					for dj := 0; dj < scale; dj++ {
						s := ((b*ho+i*scale+di)*wo + j*scale + dj) * c
						for k, v := range src[s : s+c] {
							d[k] += v
						}
					}
				}
			}
		}
	})
	return out
}
