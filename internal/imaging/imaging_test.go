package imaging

import (
	"image"
	"image/color"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

func pixels(rng *rand.Rand, shape tensor.Shape, lo, hi float64) *tensor.RawTensor {
	x := tensor.Zeros(shape)
	for i := range x.Data() {
		x.Data()[i] = float32(lo + rng.Float64()*(hi-lo))
	}
	return x
}

func TestPreprocessDeprocessRoundTrip(t *testing.T) {
	b := autodiff.New(cpu.New())
	x := pixels(rand.New(rand.NewSource(1)), tensor.Shape{2, 3, 4, 3}, 0, 255)

	for _, mode := range []Mode{BGR, RGB} {
		pre, err := Preprocess(b, x, mode)
		require.NoError(t, err)
		back, err := Deprocess(b, pre, mode)
		require.NoError(t, err)
		assert.InDeltaSlice(t, x.Data(), back.Data(), 1e-4, mode.String())
	}

	pre, err := Preprocess(b, tensor.Zeros(tensor.Shape{1, 1, 1, 3}), BGR)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-103.939, -116.779, -123.68}, pre.Data(), 1e-4)

	pre, err = Preprocess(b, tensor.Zeros(tensor.Shape{1, 1, 1, 3}), RGB)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-123.68, -116.779, -103.939}, pre.Data(), 1e-4)

	_, err = Preprocess(b, tensor.Zeros(tensor.Shape{1, 2, 2, 4}), BGR)
	require.Error(t, err)
}

func TestRenormalizeClampsPixelRange(t *testing.T) {
	b := autodiff.New(cpu.New())
	x, err := Preprocess(b, pixels(rand.New(rand.NewSource(2)), tensor.Shape{1, 4, 4, 3}, 0, 255), BGR)
	require.NoError(t, err)

	same, err := Renormalize(b, x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, x.Data(), same.Data(), 1e-3)

	// Pixel values (-50, 300, 128) in BGR space.
	out, err := tensor.FromSlice([]float32{-50 - MeanBGR[0], 300 - MeanBGR[1], 128 - MeanBGR[2]}, tensor.Shape{1, 1, 1, 3})
	require.NoError(t, err)
	clamped, err := Renormalize(b, out)
	require.NoError(t, err)
	back, err := Deprocess(b, clamped, BGR)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 255, 128}, back.Data(), 1e-3)
}

func TestRenormalizeGradientStopsAtClamp(t *testing.T) {
	b := autodiff.New(cpu.New())
	x, err := tensor.FromSlice([]float32{-50 - MeanBGR[0], 300 - MeanBGR[1], 128 - MeanBGR[2]}, tensor.Shape{1, 1, 1, 3})
	require.NoError(t, err)
	b.Watch(x)
	b.Tape().StartRecording()

	out, err := Renormalize(b, x)
	require.NoError(t, err)
	grads := b.Backward(b.ContentLoss(out, tensor.Zeros(out.Shape())))

	g := grads[x].Data()
	assert.Zero(t, g[0])
	assert.Zero(t, g[1])
	assert.NotZero(t, g[2])
}

func TestFromUnit(t *testing.T) {
	b := autodiff.New(cpu.New())
	// RGB (1, 0.5, 0) → pixels (255, 127.5, 0) → BGR (0, 127.5, 255)
	x, err := tensor.FromSlice([]float32{1, 0.5, 0}, tensor.Shape{1, 1, 1, 3})
	require.NoError(t, err)
	out, err := FromUnit(b, x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-MeanBGR[0], 127.5 - MeanBGR[1], 255 - MeanBGR[2]}, out.Data(), 1e-4)
}

func TestToImageToUnitRoundTrip(t *testing.T) {
	b := autodiff.New(cpu.New())
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.SetRGBA(0, 0, color.RGBA{R: 255, G: 10, B: 0, A: 255})
	img.SetRGBA(2, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	unit := ToUnit(img)
	assert.Equal(t, tensor.Shape{1, 2, 3, 3}, unit.Shape())
	assert.InDelta(t, 1, unit.At(0, 0, 0, 0), 1e-6)

	x, err := FromUnit(b, unit)
	require.NoError(t, err)
	back, err := ToImage(x, 0)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, back.Pix)

	_, err = ToImage(x, 1)
	require.Error(t, err)
}

func TestToImageClampsAndHandlesNaN(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1000, -1000, float32(nan())}, tensor.Shape{1, 1, 1, 3})
	require.NoError(t, err)
	img, err := ToImage(x, 0)
	require.NoError(t, err)
	// BGR (255, 0, NaN) → RGB (0, 0, 255)
	assert.Equal(t, color.RGBA{R: 0, G: 0, B: 255, A: 255}, img.RGBAAt(0, 0))
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestSaveAndDecode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 3)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	dir := t.TempDir()
	pngPath := filepath.Join(dir, "out.png")
	require.NoError(t, SavePNG(pngPath, img))
	got, err := Decode(pngPath)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())
	assert.Equal(t, img.Pix, ToRGBA(got).Pix)

	jpgPath := filepath.Join(dir, "out.jpg")
	require.NoError(t, SaveJPEG(jpgPath, img, 90))
	got, err = Decode(jpgPath)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())

	_, err = Decode(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}
