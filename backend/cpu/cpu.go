// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/parallel"
)

// Backend represents the CPU backend implementation.
//
// All kernels are pure Go over NHWC float32 tensors. Convolutions use
// im2col with a gonum BLAS GEMM.
type Backend = internalcpu.CPUBackend

// New creates a CPU backend that fans work out over all available cores.
//
// Example:
//
//	backend := cpu.New()
//	y := backend.ReLU(x)
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that runs every kernel on the
// calling goroutine.
func NewSequential() *Backend {
	return internalcpu.NewWithConfig(parallel.Sequential())
}
