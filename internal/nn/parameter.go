package nn

import (
	"github.com/born-ml/adain/internal/tensor"
)

// Parameter represents a named network tensor.
//
// Example:
//
//	kernel := nn.NewParameter("decoder.conv4_1.kernel", raw)
//	backend.Watch(kernel.Tensor())
//	// ... forward + backward ...
//	kernel.SetGrad(grads[kernel.Tensor()])
type Parameter struct {
	name   string
	tensor *tensor.RawTensor
	grad   *tensor.RawTensor
}

// NewParameter creates a new parameter. The gradient starts out nil.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.RawTensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// CollectGrads copies gradients out of grads onto each parameter. A
// parameter the loss does not depend on gets a zero gradient.
func CollectGrads(params []*Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, p := range params {
		g, ok := grads[p.tensor]
		if !ok {
			g = tensor.Zeros(p.tensor.Shape())
		}
		p.grad = g
	}
}

// GradsFinite reports whether every parameter gradient is free of NaN and
// Inf. A nil gradient counts as finite.
func GradsFinite(params []*Parameter) bool {
	for _, p := range params {
		if p.grad != nil && !p.grad.IsFinite() {
			return false
		}
	}
	return true
}
