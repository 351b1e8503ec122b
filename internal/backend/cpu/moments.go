package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/adain/internal/tensor"
)

// Moments returns the per-sample, per-channel mean and population variance
// over the spatial axes of an NHWC tensor, each shaped [N, C].
//
// Sums accumulate in float64: a 256×256 plane has 65536 terms, enough for
// float32 accumulation to drift visibly in the statistics-matching tests.
func (cpu *CPUBackend) Moments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	require4D("moments", x)
	n, _, _, c := x.Dims4()
	m, v := cpu.moments64(x)
	mean = tensor.Zeros(tensor.Shape{n, c})
	variance = tensor.Zeros(tensor.Shape{n, c})
	for i := range m {
		mean.Data()[i] = float32(m[i])
		variance.Data()[i] = float32(v[i])
	}
	return mean, variance
}

func (cpu *CPUBackend) moments64(x *tensor.RawTensor) (mean, variance []float64) {
	n, h, w, c := x.Dims4()
	hw := h * w
	data := x.Data()
	mean = make([]float64, n*c)
	variance = make([]float64, n*c)

	parallelRange(n, cpu.par, func(start, end int) {
		for b := start; b < end; b++ {
			plane := data[b*hw*c : (b+1)*hw*c]
			mu := mean[b*c : (b+1)*c]
			vr := variance[b*c : (b+1)*c]
			for p := 0; p < len(plane); p += c {
				for k, v := range plane[p : p+c] {
					mu[k] += float64(v)
				}
			}
			for k := range mu {
				mu[k] /= float64(hw)
			}
			for p := 0; p < len(plane); p += c {
				for k, v := range plane[p : p+c] {
					d := float64(v) - mu[k]
					vr[k] += d * d
				}
			}
			for k := range vr {
				vr[k] /= float64(hw)
			}
		}
	})
	return mean, variance
}

func stddev(variance []float64, eps float64) []float64 {
	out := make([]float64, len(variance))
	for i, v := range variance {
		out[i] = math.Sqrt(v + eps)
	}
	return out
}

func requireStatsCompatible(op string, a, b *tensor.RawTensor) {
	require4D(op, a)
	require4D(op, b)
	na, _, _, ca := a.Dims4()
	nb, _, _, cb := b.Dims4()
	if na != nb || ca != cb {
		panic(fmt.Sprintf("%s: batch/channel mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}

// AdaIN rescales content so that each (sample, channel) plane takes the
// style plane's mean and standard deviation:
//
//	out = σ_s · (content − μ_c) / σ_c + μ_s,   σ = sqrt(var + eps)
//
// Style and content may differ in H and W; N and C must match.
func (cpu *CPUBackend) AdaIN(style, content *tensor.RawTensor, eps float32) *tensor.RawTensor {
	requireStatsCompatible("adain", style, content)
	n, h, w, c := content.Dims4()
	sMean, sVar := cpu.moments64(style)
	cMean, cVar := cpu.moments64(content)
	sStd, cStd := stddev(sVar, float64(eps)), stddev(cVar, float64(eps))

	out := tensor.Zeros(content.Shape())
	src, dst := content.Data(), out.Data()
	hw := h * w
	parallelRange(n, cpu.par, func(start, end int) {
		for b := start; b < end; b++ {
			for p := b * hw * c; p < (b+1)*hw*c; p += c {
				for k := 0; k < c; k++ {
					i := b*c + k
					xhat := (float64(src[p+k]) - cMean[i]) / cStd[i]
					dst[p+k] = float32(sStd[i]*xhat + sMean[i])
				}
			}
		}
	})
	return out
}

// AdaINBackward returns (∂L/∂style, ∂L/∂content) given ∂L/∂out.
//
// With x̂ = (x − μ_c)/σ_c and g = ∂L/∂out:
//
//	∂L/∂x = σ_s/σ_c · (g − mean(g) − x̂·mean(g·x̂))
//	∂L/∂y = Σg / M_s + Σ(g·x̂) · (y − μ_s) / (M_s·σ_s)
//
// A near-constant content plane drives σ_c toward sqrt(eps), which keeps
// the division finite but leaves ∂L/∂x large.
func (cpu *CPUBackend) AdaINBackward(style, content, grad *tensor.RawTensor, eps float32) (styleGrad, contentGrad *tensor.RawTensor) {
	requireStatsCompatible("adain_backward", style, content)
	requireSameShape("adain_backward", content, grad)
	n, h, w, c := content.Dims4()
	_, hs, ws, _ := style.Dims4()
	sMean, sVar := cpu.moments64(style)
	cMean, cVar := cpu.moments64(content)
	sStd, cStd := stddev(sVar, float64(eps)), stddev(cVar, float64(eps))

	x, g := content.Data(), grad.Data()
	m := float64(h * w)
	sumG := make([]float64, n*c)
	sumGX := make([]float64, n*c)
	for b := 0; b < n; b++ {
		for p := b * h * w * c; p < (b+1)*h*w*c; p += c {
			for k := 0; k < c; k++ {
				i := b*c + k
				xhat := (float64(x[p+k]) - cMean[i]) / cStd[i]
				sumG[i] += float64(g[p+k])
				sumGX[i] += float64(g[p+k]) * xhat
			}
		}
	}

	contentGrad = tensor.Zeros(content.Shape())
	dx := contentGrad.Data()
	for b := 0; b < n; b++ {
		for p := b * h * w * c; p < (b+1)*h*w*c; p += c {
			for k := 0; k < c; k++ {
				i := b*c + k
				xhat := (float64(x[p+k]) - cMean[i]) / cStd[i]
				dxhat := float64(g[p+k]) - sumG[i]/m - xhat*sumGX[i]/m
				dx[p+k] = float32(sStd[i] / cStd[i] * dxhat)
			}
		}
	}

	styleGrad = tensor.Zeros(style.Shape())
	y, dy := style.Data(), styleGrad.Data()
	ms := float64(hs * ws)
	for b := 0; b < n; b++ {
		for p := b * hs * ws * c; p < (b+1)*hs*ws*c; p += c {
			for k := 0; k < c; k++ {
				i := b*c + k
				dy[p+k] = float32(sumG[i]/ms + sumGX[i]*(float64(y[p+k])-sMean[i])/(ms*sStd[i]))
			}
		}
	}
	return styleGrad, contentGrad
}
