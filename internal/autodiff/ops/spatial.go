package ops

import (
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// ReflectPadOp records reflection padding of H and W.
type ReflectPadOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	pad    int
}

// NewReflectPadOp creates a new ReflectPad operation.
func NewReflectPadOp(input, output *tensor.RawTensor, pad int) *ReflectPadOp {
	return &ReflectPadOp{input: input, output: output, pad: pad}
}

// Inputs returns the input tensors.
func (op *ReflectPadOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *ReflectPadOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward folds the border gradient back onto the mirrored pixels.
func (op *ReflectPadOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.ReflectPadBackward(outputGrad, op.pad)}
}

// MaxPool2DOp records a 2×2 stride-2 SAME max-pool.
//
// The argmax indices from the forward pass are kept so backward does not
// rescan the input.
type MaxPool2DOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	argmax []int32
}

// NewMaxPool2DOp creates a new MaxPool2D operation.
func NewMaxPool2DOp(input, output *tensor.RawTensor, argmax []int32) *MaxPool2DOp {
	return &MaxPool2DOp{input: input, output: output, argmax: argmax}
}

// Inputs returns the input tensors.
func (op *MaxPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPool2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward routes each output gradient to the input position that won the
// window.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.input.Shape(), outputGrad, op.argmax)}
}

// UpsampleOp records nearest-neighbor upsampling.
type UpsampleOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scale  int
}

// NewUpsampleOp creates a new nearest-neighbor Upsample operation.
func NewUpsampleOp(input, output *tensor.RawTensor, scale int) *UpsampleOp {
	return &UpsampleOp{input: input, output: output, scale: scale}
}

// Inputs returns the input tensors.
func (op *UpsampleOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *UpsampleOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward sums each scale×scale block of the output gradient.
func (op *UpsampleOp) Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.UpsampleNearestBackward(outputGrad, op.scale)}
}
