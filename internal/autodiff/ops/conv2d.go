package ops

import (
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// Conv2DOp records a valid stride-1 convolution.
//
// Backward:
//   - d_input:  transposed convolution of d_output with the kernel
//   - d_kernel: correlation of the input with d_output
//
// A frozen convolution (trainable == false) lets the gradient through to
// its input but never produces a kernel gradient. When the input itself is
// a constant, needInput is false and d_input is skipped.
type Conv2DOp struct {
	input     *tensor.RawTensor
	kernel    *tensor.RawTensor
	output    *tensor.RawTensor
	trainable bool
	needInput bool
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, trainable, needInput bool) *Conv2DOp {
	return &Conv2DOp{
		input:     input,
		kernel:    kernel,
		output:    output,
		trainable: trainable,
		needInput: needInput,
	}
}

// Inputs returns the input tensors.
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Trainable reports whether the kernel receives a gradient.
func (op *Conv2DOp) Trainable() bool {
	return op.trainable
}

// Backward computes gradients for Conv2D.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, 2)
	if op.needInput {
		grads[0] = backend.Conv2DInputBackward(op.input, op.kernel, outputGrad)
	}
	if op.trainable {
		grads[1] = backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad)
	}
	return grads
}

// BiasAddOp records a per-channel bias addition.
type BiasAddOp struct {
	input  *tensor.RawTensor
	bias   *tensor.RawTensor
	output *tensor.RawTensor
}

// NewBiasAddOp creates a new BiasAdd operation.
func NewBiasAddOp(input, bias, output *tensor.RawTensor) *BiasAddOp {
	return &BiasAddOp{input: input, bias: bias, output: output}
}

// Inputs returns the input tensors.
func (op *BiasAddOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.bias}
}

// Output returns the output tensor.
func (op *BiasAddOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward passes the gradient through unchanged and sums it over N, H, W
// for the bias.
func (op *BiasAddOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad, backend.BiasBackward(outputGrad)}
}
