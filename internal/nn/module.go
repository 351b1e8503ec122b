// Package nn implements the network building blocks shared by the encoder
// and the decoder.
//
// This package provides:
//   - Module interface: base interface for network components
//   - Parameter: named tensors with gradient tracking
//   - ConvStage: reflect-pad → 3×3 conv + bias → optional ReLU
//   - GlorotUniform: weight initialization
package nn

import (
	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/tensor"
)

// Module is the base interface for all network components.
type Module interface {
	// Forward computes the output of the module given an NHWC input.
	Forward(b *autodiff.Backend, input *tensor.RawTensor) (*tensor.RawTensor, error)

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for frozen modules.
	Parameters() []*Parameter
}
