// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the network building blocks of the style transfer
// model.
//
// # Overview
//
// This package contains:
//   - Module interface and Parameter
//   - ConvStage: reflect-pad 1, 3×3 convolution with bias, optional ReLU
//   - GlorotUniform initialization
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/adain/autodiff"
//	    "github.com/born-ml/adain/backend/cpu"
//	    "github.com/born-ml/adain/nn"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    rng := rand.New(rand.NewSource(1))
//
//	    stage := nn.NewGlorotConvStage(rng, "decoder.conv1_1", 64, 3, false)
//	    out, err := stage.Forward(backend, input) // (N, H, W, 64) → (N, H, W, 3)
//	}
//
// # Frozen stages
//
// A stage with Trainable false, such as every encoder stage, still passes
// gradients to its input but returns no parameters and never receives a
// kernel gradient.
package nn
