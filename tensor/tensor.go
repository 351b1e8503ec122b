// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor type used across the adain
// packages: a contiguous float32 buffer in NHWC layout.
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{1, 256, 256, 3})
//	x.Set(0.5, 0, 10, 10, 1)
//	fmt.Println(x.At(0, 10, 10, 1), x.IsFinite())
package tensor

import (
	"github.com/born-ml/adain/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{8, 256, 256, 3} is a batch of eight 256×256 RGB images.
type Shape = tensor.Shape

// RawTensor is a dense float32 tensor.
//
// RawTensor provides:
//   - Shape and strides via Shape(), Strides(), Dims4()
//   - Direct data access via Data(), At(), Set(), Item()
//   - Deep copies via Clone() and CopyFrom()
type RawTensor = tensor.RawTensor

// New allocates a zero-filled tensor, rejecting non-positive dimensions.
func New(shape Shape) (*RawTensor, error) {
	return tensor.NewRaw(shape)
}

// FromSlice copies data into a new tensor of the given shape.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 1, 2, 3})
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Zeros allocates a zero-filled tensor. It panics on an invalid shape.
func Zeros(shape Shape) *RawTensor {
	return tensor.Zeros(shape)
}

// Full allocates a tensor filled with v.
func Full(shape Shape, v float32) *RawTensor {
	return tensor.Full(shape, v)
}

// Scalar returns a 0-D tensor holding v.
func Scalar(v float32) *RawTensor {
	return tensor.Scalar(v)
}
