package ops

import (
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// AdaINOp records adaptive instance normalization of content by style.
type AdaINOp struct {
	style   *tensor.RawTensor
	content *tensor.RawTensor
	output  *tensor.RawTensor
	eps     float32
}

// NewAdaINOp creates a new AdaIN operation.
func NewAdaINOp(style, content, output *tensor.RawTensor, eps float32) *AdaINOp {
	return &AdaINOp{style: style, content: content, output: output, eps: eps}
}

// Inputs returns the input tensors.
func (op *AdaINOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.style, op.content}
}

// Output returns the output tensor.
func (op *AdaINOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for both the style and content maps.
func (op *AdaINOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	styleGrad, contentGrad := backend.AdaINBackward(op.style, op.content, outputGrad, op.eps)
	return []*tensor.RawTensor{styleGrad, contentGrad}
}

// ContentLossOp records Σ_{n,c} mean_{h,w} (a − t)².
type ContentLossOp struct {
	a, t   *tensor.RawTensor
	output *tensor.RawTensor
}

// NewContentLossOp creates a new ContentLoss operation.
func NewContentLossOp(a, t, output *tensor.RawTensor) *ContentLossOp {
	return &ContentLossOp{a: a, t: t, output: output}
}

// Inputs returns the input tensors.
func (op *ContentLossOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.t}
}

// Output returns the output tensor.
func (op *ContentLossOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward scales the residual by the scalar upstream gradient.
func (op *ContentLossOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	aGrad, tGrad := backend.ContentLossBackward(op.a, op.t, outputGrad.Item())
	return []*tensor.RawTensor{aGrad, tGrad}
}

// StyleLossOp records the squared distance between per-channel means and
// standard deviations of two feature maps.
type StyleLossOp struct {
	s, t   *tensor.RawTensor
	output *tensor.RawTensor
	eps    float32
}

// NewStyleLossOp creates a new StyleLoss operation.
func NewStyleLossOp(s, t, output *tensor.RawTensor, eps float32) *StyleLossOp {
	return &StyleLossOp{s: s, t: t, output: output, eps: eps}
}

// Inputs returns the input tensors.
func (op *StyleLossOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.s, op.t}
}

// Output returns the output tensor.
func (op *StyleLossOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward propagates through both sets of statistics.
func (op *StyleLossOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	sGrad, tGrad := backend.StyleLossBackward(op.s, op.t, op.eps, outputGrad.Item())
	return []*tensor.RawTensor{sGrad, tGrad}
}
