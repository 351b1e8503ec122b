package cpu

import (
	"fmt"

	"github.com/born-ml/adain/internal/tensor"
)

// ReflectPad pads H and W by p on each side by mirroring interior values
// (the border row itself is not repeated).
//
//	row [a b c d], p=1 → [b a b c d c]
//
// Requires p < H and p < W.
func (cpu *CPUBackend) ReflectPad(x *tensor.RawTensor, p int) *tensor.RawTensor {
	require4D("reflect_pad", x)
	n, h, w, c := x.Dims4()
	checkReflect(h, w, p)
	hp, wp := h+2*p, w+2*p
	out := tensor.Zeros(tensor.Shape{n, hp, wp, c})
	src := x.Data()
	dst := out.Data()

	parallelRange(n*hp, cpu.par, func(start, end int) {
		for r := start; r < end; r++ {
			b, i := r/hp, r%hp
			si := reflectIndex(i-p, h)
			for j := 0; j < wp; j++ {
				sj := reflectIndex(j-p, w)
				s := ((b*h+si)*w + sj) * c
				d := ((b*hp+i)*wp + j) * c
				copy(dst[d:d+c], src[s:s+c])
			}
		}
	})
	return out
}

// ReflectPadBackward folds the padded gradient back onto the source pixels
// each padded position was copied from.
func (cpu *CPUBackend) ReflectPadBackward(grad *tensor.RawTensor, p int) *tensor.RawTensor {
	require4D("reflect_pad_backward", grad)
	n, hp, wp, c := grad.Dims4()
	h, w := hp-2*p, wp-2*p
	checkReflect(h, w, p)
	out := tensor.Zeros(tensor.Shape{n, h, w, c})
	src := grad.Data()
	dst := out.Data()

	// Reflected rows of one sample land on other rows of the same sample,
	// so only the batch axis is split across workers.
	parallelRange(n, cpu.par, func(start, end int) {
		for b := start; b < end; b++ {
			for i := 0; i < hp; i++ {
				di := reflectIndex(i-p, h)
				for j := 0; j < wp; j++ {
					dj := reflectIndex(j-p, w)
					s := ((b*hp+i)*wp + j) * c
					d := ((b*h+di)*w + dj) * c
					row := dst[d : d+c]
					for k, v := range src[s : s+c] {
						row[k] += v
					}
				}
			}
		}
	})
	return out
}

func reflectIndex(i, size int) int {
	if i < 0 {
		return -i
	}
	if i >= size {
		return 2*(size-1) - i
	}
	return i
}

func checkReflect(h, w, p int) {
	if p < 0 || p >= h || p >= w {
		panic(fmt.Sprintf("reflect_pad: padding %d requires spatial size > %d, got %dx%d", p, p, h, w))
	}
}
