// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/tensor"
)

// Parameter is a named network tensor with an optional gradient.
//
// Example:
//
//	weight := nn.NewParameter("decoder.conv1_1.kernel", kernel)
//	backend.Watch(weight.Tensor())
//	// ... forward + backward ...
//	weight.SetGrad(grads[weight.Tensor()])
//
// Note: Parameter is a type alias so that values flow unchanged between this
// package and the optimizer.
type Parameter = nn.Parameter

// NewParameter creates a parameter with no gradient.
func NewParameter(name string, t *tensor.RawTensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Module is the base interface for network components.
type Module = nn.Module

// KernelSize is the spatial extent of every convolution.
const KernelSize = nn.KernelSize

// ConvStage is reflect-pad 1 → 3×3 conv + bias → optional ReLU.
type ConvStage = nn.ConvStage

// NewConvStage wraps an existing (3, 3, Cin, Cout) kernel and (Cout) bias.
func NewConvStage(name string, kernel, bias *tensor.RawTensor, trainable, activate bool) (*ConvStage, error) {
	return nn.NewConvStage(name, kernel, bias, trainable, activate)
}

// NewGlorotConvStage creates a trainable stage with Glorot-uniform weights.
func NewGlorotConvStage(rng *rand.Rand, name string, cIn, cOut int, activate bool) *ConvStage {
	return nn.NewGlorotConvStage(rng, name, cIn, cOut, activate)
}

// GlorotUniform samples a tensor from U(-limit, limit) with
// limit = sqrt(6 / (fanIn + fanOut)).
func GlorotUniform(rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape) *tensor.RawTensor {
	return nn.GlorotUniform(rng, fanIn, fanOut, shape)
}
