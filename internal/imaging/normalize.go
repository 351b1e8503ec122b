// Package imaging converts between images and the network's input space:
// BGR channel order with the VGG dataset mean subtracted.
package imaging

import (
	"fmt"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/tensor"
)

// Mode selects the channel order of a tensor.
type Mode int

// Channel orders.
const (
	BGR Mode = iota
	RGB
)

func (m Mode) String() string {
	switch m {
	case BGR:
		return "bgr"
	case RGB:
		return "rgb"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MeanBGR is the VGG training-set pixel mean in BGR order.
var MeanBGR = [3]float32{103.939, 116.779, 123.68}

// PixelMax is the upper bound of the pixel range.
const PixelMax = 255

func mean(mode Mode) []float32 {
	if mode == RGB {
		return []float32{MeanBGR[2], MeanBGR[1], MeanBGR[0]}
	}
	return []float32{MeanBGR[0], MeanBGR[1], MeanBGR[2]}
}

func negated(v []float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func require3(x *tensor.RawTensor) error {
	if s := x.Shape(); len(s) != 4 || s[3] != 3 {
		return fmt.Errorf("imaging: expected (N, H, W, 3), got %v", s)
	}
	return nil
}

// Preprocess subtracts the dataset mean from pixel values in [0, 255]
// stored in the given channel order.
func Preprocess(b *autodiff.Backend, x *tensor.RawTensor, mode Mode) (*tensor.RawTensor, error) {
	if err := require3(x); err != nil {
		return nil, err
	}
	return b.ChannelShift(x, negated(mean(mode))), nil
}

// Deprocess adds the dataset mean back.
func Deprocess(b *autodiff.Backend, x *tensor.RawTensor, mode Mode) (*tensor.RawTensor, error) {
	if err := require3(x); err != nil {
		return nil, err
	}
	return b.ChannelShift(x, mean(mode)), nil
}

// Renormalize maps a network-space BGR batch back through pixel space:
// deprocess, reverse to RGB, clamp to [0, 255], reverse to BGR,
// preprocess. The steps are recorded, so gradients flow through wherever
// the clamp is inactive.
func Renormalize(b *autodiff.Backend, x *tensor.RawTensor) (*tensor.RawTensor, error) {
	x, err := Deprocess(b, x, BGR)
	if err != nil {
		return nil, err
	}
	x = b.ReverseChannels(x)
	x = b.Clamp(x, 0, PixelMax)
	x = b.ReverseChannels(x)
	return Preprocess(b, x, BGR)
}

// FromUnit converts an RGB batch in [0, 1] into network space: scale to
// [0, 255], reverse to BGR, subtract the mean.
func FromUnit(b *autodiff.Backend, x *tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := require3(x); err != nil {
		return nil, err
	}
	scaled := b.Inner().Scale(x, PixelMax)
	return Preprocess(b, b.ReverseChannels(scaled), BGR)
}
