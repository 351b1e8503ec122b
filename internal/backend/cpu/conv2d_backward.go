package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/adain/internal/tensor"
)

// Conv2DInputBackward computes ∂L/∂input for Conv2D.
//
//	d_col = d_output [rows, C_out] @ kernelᵀ [C_out, KH*KW*C_in]
//	d_input = col2im(d_col)
//
// Overlapping patches accumulate into shared input pixels, so samples run
// in parallel and tiles within a sample run in order.
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor) *tensor.RawTensor {
	g := convGeometry("conv2d_input_backward", input, kernel)
	inputGrad := tensor.Zeros(input.Shape())

	k := blas32.General{Rows: g.colWidth(), Cols: g.cOut, Stride: g.cOut, Data: kernel.Data()}
	dOut := grad.Data()
	dx := inputGrad.Data()
	perSample := g.hOut * g.wOut

	parallelRange(g.n, cpu.par, func(sStart, sEnd int) {
		col := make([]float32, im2colTileRows*g.colWidth())
		for s := sStart; s < sEnd; s++ {
			for start := s * perSample; start < (s+1)*perSample; start += im2colTileRows {
				end := min(start+im2colTileRows, (s+1)*perSample)
				n := end - start
				a := blas32.General{Rows: n, Cols: g.cOut, Stride: g.cOut, Data: dOut[start*g.cOut : end*g.cOut]}
				c := blas32.General{Rows: n, Cols: g.colWidth(), Stride: g.colWidth(), Data: col[:n*g.colWidth()]}
				blas32.Gemm(blas.NoTrans, blas.Trans, 1, a, k, 0, c)
				col2im(dx, col, g, start, end)
			}
		}
	})

	return inputGrad
}

// Conv2DKernelBackward computes ∂L/∂kernel for Conv2D.
//
//	d_kernel [KH*KW*C_in, C_out] = Σ_tiles colᵀ @ d_output
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor) *tensor.RawTensor {
	g := convGeometry("conv2d_kernel_backward", input, kernel)
	kernelGrad := tensor.Zeros(kernel.Shape())
	dk := blas32.General{Rows: g.colWidth(), Cols: g.cOut, Stride: g.cOut, Data: kernelGrad.Data()}

	x := input.Data()
	dOut := grad.Data()
	rows := g.n * g.hOut * g.wOut
	col := make([]float32, im2colTileRows*g.colWidth())
	for start := 0; start < rows; start += im2colTileRows {
		end := min(start+im2colTileRows, rows)
		n := end - start
		im2col(col, x, g, start, end)
		a := blas32.General{Rows: n, Cols: g.colWidth(), Stride: g.colWidth(), Data: col[:n*g.colWidth()]}
		b := blas32.General{Rows: n, Cols: g.cOut, Stride: g.cOut, Data: dOut[start*g.cOut : end*g.cOut]}
		blas32.Gemm(blas.Trans, blas.NoTrans, 1, a, b, 1, dk)
	}

	return kernelGrad
}

// BiasAdd adds a per-channel bias to an NHWC tensor.
func (cpu *CPUBackend) BiasAdd(x, bias *tensor.RawTensor) *tensor.RawTensor {
	c := x.Shape()[len(x.Shape())-1]
	if bias.NumElements() != c {
		panic("bias_add: bias length does not match channel count")
	}
	out := x.Clone()
	data := out.Data()
	b := bias.Data()
	parallelRange(len(data)/c, cpu.par, func(start, end int) {
		for p := start; p < end; p++ {
			row := data[p*c : (p+1)*c]
			for i := range row {
				row[i] += b[i]
			}
		}
	})
	return out
}

// BiasBackward reduces an NHWC gradient to a per-channel bias gradient.
func (cpu *CPUBackend) BiasBackward(grad *tensor.RawTensor) *tensor.RawTensor {
	c := grad.Shape()[len(grad.Shape())-1]
	acc := make([]float64, c)
	data := grad.Data()
	for p := 0; p < len(data); p += c {
		for i, v := range data[p : p+c] {
			acc[i] += float64(v)
		}
	}
	out := tensor.Zeros(tensor.Shape{c})
	for i, v := range acc {
		out.Data()[i] = float32(v)
	}
	return out
}
