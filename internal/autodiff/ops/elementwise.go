package ops

import (
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// ReLUOp records max(0, x).
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLU operation.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Inputs returns the input tensors.
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward: d(ReLU(x))/dx = 1 if x > 0, else 0.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ReLUBackward(op.input, outputGrad)}
}

// ChannelShiftOp records x + v broadcast over the channel axis. The shift
// vector is a constant.
type ChannelShiftOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewChannelShiftOp creates a new ChannelShift operation.
func NewChannelShiftOp(input, output *tensor.RawTensor) *ChannelShiftOp {
	return &ChannelShiftOp{input: input, output: output}
}

// Inputs returns the input tensors.
func (op *ChannelShiftOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ChannelShiftOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward is the identity.
func (op *ChannelShiftOp) Backward(outputGrad *tensor.RawTensor, _ *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// ReverseChannelsOp records a reversal of the channel axis.
type ReverseChannelsOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReverseChannelsOp creates a new ReverseChannels operation.
func NewReverseChannelsOp(input, output *tensor.RawTensor) *ReverseChannelsOp {
	return &ReverseChannelsOp{input: input, output: output}
}

// Inputs returns the input tensors.
func (op *ReverseChannelsOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ReverseChannelsOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward reverses the gradient's channels; the permutation is its own
// inverse.
func (op *ReverseChannelsOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ReverseChannels(outputGrad)}
}

// ClampOp records min(max(x, lo), hi).
type ClampOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	lo, hi float32
}

// NewClampOp creates a new Clamp operation.
func NewClampOp(input, output *tensor.RawTensor, lo, hi float32) *ClampOp {
	return &ClampOp{input: input, output: output, lo: lo, hi: hi}
}

// Inputs returns the input tensors.
func (op *ClampOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ClampOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward passes the gradient where lo ≤ x ≤ hi and zeroes it elsewhere.
func (op *ClampOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ClampBackward(op.input, outputGrad, op.lo, op.hi)}
}

// AddScaledOp records a + alpha·b.
type AddScaledOp struct {
	a, b   *tensor.RawTensor
	output *tensor.RawTensor
	alpha  float32
}

// NewAddScaledOp creates a new AddScaled operation.
func NewAddScaledOp(a, b, output *tensor.RawTensor, alpha float32) *AddScaledOp {
	return &AddScaledOp{a: a, b: b, output: output, alpha: alpha}
}

// Inputs returns the input tensors.
func (op *AddScaledOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.b}
}

// Output returns the output tensor.
func (op *AddScaledOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward: d/da = grad, d/db = alpha·grad.
func (op *AddScaledOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad, backend.Scale(outputGrad, op.alpha)}
}
