// Package stylize renders a content image in the style of another with a
// trained decoder.
package stylize

import (
	"fmt"
	"image"

	"github.com/born-ml/adain/internal/adain"
	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/decoder"
	"github.com/born-ml/adain/internal/encoder"
	"github.com/born-ml/adain/internal/imaging"
	"github.com/born-ml/adain/internal/tensor"
)

// Model pairs the frozen encoder with a trained decoder.
type Model struct {
	Encoder *encoder.Encoder
	Decoder *decoder.Decoder
}

// Load builds a model from an extractor archive and a decoder checkpoint.
func Load(weights string, cfg encoder.Config, checkpoint string) (*Model, error) {
	enc, err := encoder.Load(weights, cfg)
	if err != nil {
		return nil, err
	}
	dec, _, err := decoder.Load(checkpoint)
	if err != nil {
		return nil, err
	}
	return &Model{Encoder: enc, Decoder: dec}, nil
}

// Stylize decodes the AdaIN transfer of style onto content. Both are
// (N, H, W, 3) RGB batches in [0, 1] with the same N; their spatial sizes
// may differ. The result is a preprocessed BGR batch whose sides are the
// content sides rounded up to a multiple of 8.
func (m *Model) Stylize(content, style *tensor.RawTensor) (*tensor.RawTensor, error) {
	return m.Blend(content, style, 1)
}

// Blend is Stylize with the decoder input interpolated between the content
// features (alpha 0) and the transferred features (alpha 1).
func (m *Model) Blend(content, style *tensor.RawTensor, alpha float32) (*tensor.RawTensor, error) {
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("stylize: alpha must be in [0, 1], got %g", alpha)
	}

	// Nothing is watched, so the tape stays empty.
	b := autodiff.New(cpu.New())
	contentImg, err := imaging.FromUnit(b, content)
	if err != nil {
		return nil, fmt.Errorf("stylize: content: %w", err)
	}
	styleImg, err := imaging.FromUnit(b, style)
	if err != nil {
		return nil, fmt.Errorf("stylize: style: %w", err)
	}

	contentFeat, err := m.Encoder.Bottleneck(b, contentImg)
	if err != nil {
		return nil, fmt.Errorf("stylize: %w", err)
	}
	styleFeat, err := m.Encoder.Bottleneck(b, styleImg)
	if err != nil {
		return nil, fmt.Errorf("stylize: %w", err)
	}
	t, err := adain.Transfer(b, styleFeat, contentFeat)
	if err != nil {
		return nil, fmt.Errorf("stylize: %w", err)
	}
	if alpha < 1 {
		t = b.AddScaled(b.Inner().Scale(t, alpha), contentFeat, 1-alpha)
	}

	out, err := m.Decoder.Forward(b, t)
	if err != nil {
		return nil, fmt.Errorf("stylize: %w", err)
	}
	return imaging.Renormalize(b, out)
}

// MinSize is the smallest image side the encoder accepts.
func (m *Model) MinSize() int {
	return m.Encoder.Config().MinSide()
}

// StylizeImage stylizes a single image pair and crops the result to the
// content bounds.
func (m *Model) StylizeImage(content, style image.Image, alpha float32) (*image.RGBA, error) {
	minSide := m.MinSize()
	for _, img := range []image.Image{content, style} {
		if r := img.Bounds(); r.Dx() < minSide || r.Dy() < minSide {
			return nil, fmt.Errorf("stylize: image %dx%d is smaller than %dx%d", r.Dx(), r.Dy(), minSide, minSide)
		}
	}

	out, err := m.Blend(imaging.ToUnit(content), imaging.ToUnit(style), alpha)
	if err != nil {
		return nil, err
	}
	rgba, err := imaging.ToImage(out, 0)
	if err != nil {
		return nil, fmt.Errorf("stylize: %w", err)
	}
	r := content.Bounds()
	return rgba.SubImage(image.Rect(0, 0, r.Dx(), r.Dy())).(*image.RGBA), nil
}
