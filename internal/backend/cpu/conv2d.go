package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/adain/internal/tensor"
)

// im2colTileRows bounds the im2col scratch buffer: a tile holds this many
// output positions, each expanded to KH*KW*Cin values.
const im2colTileRows = 1024

// Conv2D performs a stride-1 "valid" 2D convolution using im2col + GEMM.
//
// Input shape:  [N, H, W, C_in]
// Kernel shape: [K_h, K_w, C_in, C_out]
// Output shape: [N, H-K_h+1, W-K_w+1, C_out]
//
// Padding is not applied here; the network stages reflect-pad explicitly.
//
// Algorithm: Im2col
//  1. Expand a tile of output positions into rows of KH*KW*C_in patch values
//  2. The HWIO kernel is already a (KH*KW*C_in, C_out) row-major matrix
//  3. GEMM the tile against the kernel straight into the NHWC output
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor) *tensor.RawTensor {
	g := convGeometry("conv2d", input, kernel)
	output := tensor.Zeros(tensor.Shape{g.n, g.hOut, g.wOut, g.cOut})

	k := blas32.General{Rows: g.colWidth(), Cols: g.cOut, Stride: g.cOut, Data: kernel.Data()}
	out := output.Data()
	x := input.Data()

	rows := g.n * g.hOut * g.wOut
	tiles := (rows + im2colTileRows - 1) / im2colTileRows
	cpu.forTiles(tiles, func(tile int, col []float32) {
		start := tile * im2colTileRows
		end := min(start+im2colTileRows, rows)
		n := end - start
		im2col(col, x, g, start, end)

		a := blas32.General{Rows: n, Cols: g.colWidth(), Stride: g.colWidth(), Data: col[:n*g.colWidth()]}
		c := blas32.General{Rows: n, Cols: g.cOut, Stride: g.cOut, Data: out[start*g.cOut : end*g.cOut]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, k, 0, c)
	}, g.colWidth())

	return output
}

// geometry captures the dimensions shared by Conv2D and its backward kernels.
type geometry struct {
	n, h, w, cIn int
	kH, kW, cOut int
	hOut, wOut   int
}

func (g geometry) colWidth() int {
	return g.kH * g.kW * g.cIn
}

func convGeometry(op string, input, kernel *tensor.RawTensor) geometry {
	require4D(op, input)
	ks := kernel.Shape()
	if len(ks) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [K_h,K_w,C_in,C_out], got %v", op, ks))
	}
	n, h, w, c := input.Dims4()
	if ks[2] != c {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, c, ks[2]))
	}
	g := geometry{n: n, h: h, w: w, cIn: c, kH: ks[0], kW: ks[1], cOut: ks[3]}
	g.hOut = h - g.kH + 1
	g.wOut = w - g.kW + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: kernel %dx%d larger than input %dx%d", op, g.kH, g.kW, h, w))
	}
	return g
}

// im2col fills col with one row per output position in [start, end).
// Row layout matches the HWIO kernel: (kh, kw, c_in), c_in fastest.
func im2col(col, x []float32, g geometry, start, end int) {
	width := g.colWidth()
	span := g.kW * g.cIn
	for r := start; r < end; r++ {
		n := r / (g.hOut * g.wOut)
		rem := r % (g.hOut * g.wOut)
		oh, ow := rem/g.wOut, rem%g.wOut
		dst := col[(r-start)*width : (r-start+1)*width]
		for kh := 0; kh < g.kH; kh++ {
			src := ((n*g.h+oh+kh)*g.w + ow) * g.cIn
			copy(dst[kh*span:(kh+1)*span], x[src:src+span])
		}
	}
}

// col2im scatter-adds patch gradients back into dx; the inverse of im2col.
func col2im(dx, col []float32, g geometry, start, end int) {
	width := g.colWidth()
	span := g.kW * g.cIn
	for r := start; r < end; r++ {
		n := r / (g.hOut * g.wOut)
		rem := r % (g.hOut * g.wOut)
		oh, ow := rem/g.wOut, rem%g.wOut
		src := col[(r-start)*width : (r-start+1)*width]
		for kh := 0; kh < g.kH; kh++ {
			off := ((n*g.h+oh+kh)*g.w + ow) * g.cIn
			dst := dx[off : off+span]
			row := src[kh*span : (kh+1)*span]
			for i, v := range row {
				dst[i] += v
			}
		}
	}
}

// forTiles runs f over tile indices with one scratch buffer per worker.
func (cpu *CPUBackend) forTiles(tiles int, f func(tile int, col []float32), width int) {
	cfg := cpu.par
	cfg.MinChunkSize = 1
	parallelRange(tiles, cfg, func(start, end int) {
		col := make([]float32, im2colTileRows*width)
		for t := start; t < end; t++ {
			f(t, col)
		}
	})
}
