// Package adain implements adaptive instance normalization: re-scaling a
// content feature map so each (sample, channel) plane takes the mean and
// standard deviation of the matching style plane.
package adain

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/tensor"
)

// Epsilon is added to the variance before taking the square root.
const Epsilon = 1e-5

// ErrShapeMismatch is returned when style and content disagree on batch
// size or channel count.
var ErrShapeMismatch = errors.New("adain: style and content shapes are incompatible")

// Transfer returns σ_s · (content − μ_c) / σ_c + μ_s, computed per sample
// and channel over H and W. Style and content may differ in H and W.
func Transfer(b *autodiff.Backend, style, content *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := compatible(style, content); err != nil {
		return nil, err
	}
	return b.AdaIN(style, content, Epsilon), nil
}

// Stats returns the per-(sample, channel) mean and epsilon-stabilized
// standard deviation of x, both shaped (N, C).
func Stats(b *autodiff.Backend, x *tensor.RawTensor) (mean, std *tensor.RawTensor, err error) {
	if len(x.Shape()) != 4 {
		return nil, nil, fmt.Errorf("adain: expected NHWC map, got %v", x.Shape())
	}
	mean, variance := b.Moments(x)
	std = tensor.Zeros(variance.Shape())
	for i, v := range variance.Data() {
		std.Data()[i] = float32(math.Sqrt(float64(v) + Epsilon))
	}
	return mean, std, nil
}

func compatible(style, content *tensor.RawTensor) error {
	ss, cs := style.Shape(), content.Shape()
	if len(ss) != 4 || len(cs) != 4 {
		return fmt.Errorf("%w: style %v, content %v", ErrShapeMismatch, ss, cs)
	}
	if ss[0] != cs[0] || ss[3] != cs[3] {
		return fmt.Errorf("%w: style %v, content %v", ErrShapeMismatch, ss, cs)
	}
	return nil
}
