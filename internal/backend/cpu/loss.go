package cpu

import (
	"github.com/born-ml/adain/internal/tensor"
)

// ContentLoss computes Σ_{n,c} mean_{h,w} (a − t)² as a scalar tensor.
func (cpu *CPUBackend) ContentLoss(a, t *tensor.RawTensor) *tensor.RawTensor {
	require4D("content_loss", a)
	requireSameShape("content_loss", a, t)
	_, h, w, _ := a.Dims4()
	var sum float64
	ad, td := a.Data(), t.Data()
	for i := range ad {
		d := float64(ad[i]) - float64(td[i])
		sum += d * d
	}
	return tensor.Scalar(float32(sum / float64(h*w)))
}

// ContentLossBackward returns (∂L/∂a, ∂L/∂t) scaled by the upstream scalar.
func (cpu *CPUBackend) ContentLossBackward(a, t *tensor.RawTensor, grad float32) (aGrad, tGrad *tensor.RawTensor) {
	requireSameShape("content_loss_backward", a, t)
	_, h, w, _ := a.Dims4()
	scale := 2 * grad / float32(h*w)
	aGrad = tensor.Zeros(a.Shape())
	tGrad = tensor.Zeros(t.Shape())
	ad, td := a.Data(), t.Data()
	da, dt := aGrad.Data(), tGrad.Data()
	for i := range ad {
		v := scale * (ad[i] - td[i])
		da[i] = v
		dt[i] = -v
	}
	return aGrad, tGrad
}

// StyleLoss computes Σ_{n,c} (μ_s − μ_t)² + Σ_{n,c} (σ_s − σ_t)² with
// σ = sqrt(var + eps). Spatial sizes of s and t may differ.
func (cpu *CPUBackend) StyleLoss(s, t *tensor.RawTensor, eps float32) *tensor.RawTensor {
	requireStatsCompatible("style_loss", s, t)
	sMean, sVar := cpu.moments64(s)
	tMean, tVar := cpu.moments64(t)
	sStd, tStd := stddev(sVar, float64(eps)), stddev(tVar, float64(eps))
	var meanDiff, stdDiff float64
	for i := range sMean {
		dm := sMean[i] - tMean[i]
		ds := sStd[i] - tStd[i]
		meanDiff += dm * dm
		stdDiff += ds * ds
	}
	return tensor.Scalar(float32(meanDiff + stdDiff))
}

// StyleLossBackward returns (∂L/∂s, ∂L/∂t) scaled by the upstream scalar.
func (cpu *CPUBackend) StyleLossBackward(s, t *tensor.RawTensor, eps, grad float32) (sGrad, tGrad *tensor.RawTensor) {
	requireStatsCompatible("style_loss_backward", s, t)
	sMean, sVar := cpu.moments64(s)
	tMean, tVar := cpu.moments64(t)
	sStd, tStd := stddev(sVar, float64(eps)), stddev(tVar, float64(eps))

	dMean := make([]float64, len(sMean))
	dStd := make([]float64, len(sMean))
	for i := range sMean {
		dMean[i] = 2 * float64(grad) * (sMean[i] - tMean[i])
		dStd[i] = 2 * float64(grad) * (sStd[i] - tStd[i])
	}

	sGrad = statsGrad(s, sMean, sStd, dMean, dStd, 1)
	tGrad = statsGrad(t, tMean, tStd, dMean, dStd, -1)
	return sGrad, tGrad
}

// statsGrad back-propagates sign·(dMean, dStd) through the per-channel
// mean and epsilon-stabilized standard deviation of x.
func statsGrad(x *tensor.RawTensor, mean, std, dMean, dStd []float64, sign float64) *tensor.RawTensor {
	n, h, w, c := x.Dims4()
	m := float64(h * w)
	out := tensor.Zeros(x.Shape())
	src, dst := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		for p := b * h * w * c; p < (b+1)*h*w*c; p += c {
			for k := 0; k < c; k++ {
				i := b*c + k
				v := dMean[i]/m + dStd[i]*(float64(src[p+k])-mean[i])/(m*std[i])
				dst[p+k] = float32(sign * v)
			}
		}
	}
	return out
}
