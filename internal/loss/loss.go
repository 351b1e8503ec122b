// Package loss composes the content and style objectives used to train the
// decoder.
//
//	content = Σ_{n,c} mean_{h,w} (t − f(g(t))[bottleneck])²
//	style   = Σ_depth Σ_{n,c} (μ_s − μ_g)² + (σ_s − σ_g)²
//	total   = content + styleWeight · style
//
// where t is the AdaIN output, g(t) the decoded image and f the encoder.
package loss

import (
	"fmt"
	"math"

	"github.com/born-ml/adain/internal/adain"
	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/encoder"
	"github.com/born-ml/adain/internal/tensor"
)

// DefaultStyleWeight is the weight of the style term.
const DefaultStyleWeight = 2

// Result holds the scalar loss values of one evaluation. Loss is the total
// as a tensor, ready for Backward.
type Result struct {
	Total   float32
	Content float32
	Style   float32
	Loss    *tensor.RawTensor
}

// Finite reports whether every component is neither NaN nor ±Inf.
func (r Result) Finite() bool {
	for _, v := range []float32{r.Total, r.Content, r.Style} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Composer evaluates the training objective against a fixed encoder.
type Composer struct {
	enc         *encoder.Encoder
	styleWeight float32
}

// New creates a loss composer.
func New(enc *encoder.Encoder, styleWeight float32) *Composer {
	return &Composer{enc: enc, styleWeight: styleWeight}
}

// StyleWeight returns the style term's weight.
func (c *Composer) StyleWeight() float32 {
	return c.styleWeight
}

// Compute encodes styleImage as a constant and evaluates the loss of the
// decoded image target against adainOut.
func (c *Composer) Compute(b *autodiff.Backend, adainOut, styleImage, target *tensor.RawTensor) (Result, error) {
	var (
		styleFeats encoder.Features
		err        error
	)
	b.NoGrad(func() {
		styleFeats, err = c.enc.Extract(b, styleImage)
	})
	if err != nil {
		return Result{}, fmt.Errorf("loss: style features: %w", err)
	}
	return c.ComputeFeatures(b, adainOut, styleFeats, target)
}

// ComputeFeatures is Compute with the style features already extracted.
func (c *Composer) ComputeFeatures(b *autodiff.Backend, adainOut *tensor.RawTensor, styleFeats encoder.Features, target *tensor.RawTensor) (Result, error) {
	cfg := c.enc.Config()
	feats, err := c.enc.Extract(b, target)
	if err != nil {
		return Result{}, fmt.Errorf("loss: target features: %w", err)
	}

	bottleneck := feats[cfg.Bottleneck]
	if !bottleneck.Shape().Equal(adainOut.Shape()) {
		return Result{}, fmt.Errorf("loss: transfer output %v does not match target %s %v",
			adainOut.Shape(), cfg.Bottleneck, bottleneck.Shape())
	}
	content := b.ContentLoss(adainOut, bottleneck)

	var style *tensor.RawTensor
	for _, d := range cfg.StyleDepths {
		s, ok := styleFeats[d]
		if !ok {
			return Result{}, fmt.Errorf("loss: missing style features at %s", d)
		}
		g := feats[d]
		if ss, gs := s.Shape(), g.Shape(); ss[0] != gs[0] || ss[3] != gs[3] {
			return Result{}, fmt.Errorf("loss: %w at %s: style %v, target %v", adain.ErrShapeMismatch, d, ss, gs)
		}
		term := b.StyleLoss(s, g, adain.Epsilon)
		if style == nil {
			style = term
		} else {
			style = b.AddScaled(style, term, 1)
		}
	}

	total := b.AddScaled(content, style, c.styleWeight)
	return Result{
		Total:   total.Item(),
		Content: content.Item(),
		Style:   style.Item(),
		Loss:    total,
	}, nil
}
