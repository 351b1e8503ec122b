// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides automatic differentiation capabilities.
//
// This package implements reverse-mode automatic differentiation
// (backpropagation) using a gradient tape. It wraps the CPU backend and
// records operations on tensors derived from watched parameters.
//
// Example:
//
//	import (
//	    "github.com/born-ml/adain/autodiff"
//	    "github.com/born-ml/adain/backend/cpu"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    backend.Tape().StartRecording()
//	    backend.Watch(kernel)
//
//	    y := backend.ReLU(backend.Conv2D(x, kernel)) // recorded
//	    loss := backend.ContentLoss(y, target)
//
//	    grads := backend.Backward(loss)
//	}
package autodiff

import (
	"github.com/born-ml/adain/internal/autodiff"
	internalcpu "github.com/born-ml/adain/internal/backend/cpu"
)

// Backend is the autodiff-enabled backend.
type Backend = autodiff.Backend

// New creates a new autodiff backend wrapping the given CPU backend.
func New(backend *internalcpu.CPUBackend) *Backend {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}
