// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the style transfer
// network.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col algorithm for 3×3 convolutions
//   - Reflect padding, 2×2 max pooling and nearest upsampling
//   - Per-channel moments, AdaIN and its losses
//
// Every forward kernel has a matching backward kernel used by the
// autodiff package.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/adain/backend/cpu"
//	    "github.com/born-ml/adain/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros(tensor.Shape{1, 16, 16, 3})
//	    padded := backend.ReflectPad(x, 1)
//	}
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
