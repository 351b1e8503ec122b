package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeStrides(t *testing.T) {
	s := Shape{2, 3, 4, 5}
	assert.Equal(t, []int{60, 20, 5, 1}, s.ComputeStrides())
	assert.Equal(t, 120, s.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, "(2, 3, 4, 5)", s.String())
}

func TestShapeValidate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	require.Error(t, Shape{1, 0}.Validate())
	require.Error(t, Shape{-3}.Validate())
}

func TestFromSliceCopies(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	raw, err := FromSlice(src, Shape{2, 2})
	require.NoError(t, err)

	src[0] = 99
	assert.Equal(t, float32(1), raw.At(0, 0))

	_, err = FromSlice(src, Shape{3, 2})
	require.Error(t, err)
}

func TestAtSetNHWC(t *testing.T) {
	raw := Zeros(Shape{1, 2, 2, 3})
	raw.Set(7, 0, 1, 0, 2)
	n, h, w, c := raw.Dims4()
	assert.Equal(t, []int{1, 2, 2, 3}, []int{n, h, w, c})
	// (h=1, w=0, c=2) -> 1*6 + 0*3 + 2
	assert.Equal(t, float32(7), raw.Data()[8])
	assert.Equal(t, float32(7), raw.At(0, 1, 0, 2))

	assert.Panics(t, func() { raw.At(0, 2, 0, 0) })
	assert.Panics(t, func() { raw.At(0, 0) })
}

func TestReshapeSharesData(t *testing.T) {
	raw := Full(Shape{2, 3}, 1)
	view, err := raw.Reshape(Shape{3, 2})
	require.NoError(t, err)
	view.Data()[0] = 5
	assert.Equal(t, float32(5), raw.Data()[0])

	_, err = raw.Reshape(Shape{4})
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	raw := Full(Shape{2}, 3)
	c := raw.Clone()
	c.Data()[0] = 0
	assert.Equal(t, float32(3), raw.Data()[0])
	require.NoError(t, raw.CopyFrom(c))
	assert.Equal(t, float32(0), raw.Data()[0])
	require.Error(t, raw.CopyFrom(Zeros(Shape{3})))
}

func TestIsFinite(t *testing.T) {
	raw := Full(Shape{3}, 1)
	assert.True(t, raw.IsFinite())
	raw.Data()[1] = float32(math.NaN())
	assert.False(t, raw.IsFinite())
	raw.Data()[1] = float32(math.Inf(-1))
	assert.False(t, raw.IsFinite())
}

func TestScalarItem(t *testing.T) {
	s := Scalar(2.5)
	assert.Equal(t, float32(2.5), s.Item())
	assert.Equal(t, 0, len(s.Shape()))
	assert.Panics(t, func() { Zeros(Shape{2}).Item() })
}
