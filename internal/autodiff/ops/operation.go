// Package ops defines the differentiable operations recorded on a gradient
// tape.
//
// Each operation keeps the tensors it needs for its backward pass and
// delegates the actual gradient arithmetic to the CPU backend. Backward
// returns one gradient per input, in Inputs() order; a nil entry means no
// gradient flows to that input.
package ops

import (
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes input gradients given the output gradient.
	Backward(outputGrad *tensor.RawTensor, backend *cpu.CPUBackend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
