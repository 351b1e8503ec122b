package tensor

import (
	"fmt"
	"slices"
	"strings"
)

// Shape lists tensor dimensions outermost first. Image batches and feature
// maps are (N, H, W, C); kernels are (KH, KW, Cin, Cout). The empty shape is
// a scalar.
type Shape []int

// NumElements returns the product of the dimensions, 1 for a scalar.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate rejects zero and negative dimensions.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("dimension %d of %v is %d, must be positive", i, s, s[i])
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return append(Shape{}, s...)
}

// ComputeStrides returns row-major strides: the last axis (channels for
// NHWC) is contiguous.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// String formats the shape as (d0, d1, ...).
func (s Shape) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, d := range s {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, d)
	}
	sb.WriteByte(')')
	return sb.String()
}
