// Package tensor provides the float32 storage used by every numeric kernel.
//
// Feature maps and images are laid out NHWC: (batch, height, width, channels),
// row-major, channels fastest. Convolution kernels are (KH, KW, Cin, Cout).
package tensor

import (
	"fmt"
	"math"
)

// RawTensor is a contiguous float32 buffer with a shape.
//
// RawTensor pointers double as graph identities: the autodiff tape keys
// gradients by *RawTensor, so kernels always return fresh tensors rather
// than writing in place.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
}

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
	}, nil
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape)
	if err != nil {
		return nil, err
	}
	copy(raw.data, data)
	return raw, nil
}

// Zeros allocates a zero-filled tensor and panics on an invalid shape.
// Kernels use it for outputs whose shapes they have already derived.
func Zeros(shape Shape) *RawTensor {
	raw, err := NewRaw(shape)
	if err != nil {
		panic(err)
	}
	return raw
}

// Full allocates a tensor filled with v.
func Full(shape Shape, v float32) *RawTensor {
	raw := Zeros(shape)
	for i := range raw.data {
		raw.data[i] = v
	}
	return raw
}

// Scalar returns a 0-D tensor holding v.
func Scalar(v float32) *RawTensor {
	return &RawTensor{data: []float32{v}, shape: Shape{}, stride: []int{}}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the backing slice (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Item returns the value of a single-element tensor.
func (r *RawTensor) Item() float32 {
	if len(r.data) != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", r.shape))
	}
	return r.data[0]
}

// Dims4 unpacks an NHWC shape.
// Panics if the tensor is not 4-D.
func (r *RawTensor) Dims4() (n, h, w, c int) {
	if len(r.shape) != 4 {
		panic(fmt.Sprintf("expected 4D tensor (N,H,W,C), got shape %v", r.shape))
	}
	return r.shape[0], r.shape[1], r.shape[2], r.shape[3]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (r *RawTensor) At(indices ...int) float32 {
	return r.data[r.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (r *RawTensor) Set(value float32, indices ...int) {
	r.data[r.offset(indices)] = value
}

func (r *RawTensor) offset(indices []int) int {
	if len(indices) != len(r.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(r.shape), len(indices)))
	}
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= r.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, r.shape[i]))
		}
		off += idx * r.stride[i]
	}
	return off
}

// Reshape returns a view sharing r's data with a new shape.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(r.data) {
		return nil, fmt.Errorf("cannot reshape %v into %v", r.shape, shape)
	}
	return &RawTensor{data: r.data, shape: shape.Clone(), stride: shape.ComputeStrides()}, nil
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{data: data, shape: r.shape.Clone(), stride: append([]int(nil), r.stride...)}
}

// CopyFrom overwrites r's data with src's. Shapes must match.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape mismatch %v vs %v", r.shape, src.shape)
	}
	copy(r.data, src.data)
	return nil
}

// IsFinite reports whether every element is neither NaN nor ±Inf.
func (r *RawTensor) IsFinite() bool {
	for _, v := range r.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// String returns a human-readable representation of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("Tensor[float32]%v", r.shape)
}
