package dataset

import (
	"fmt"
	"image"
	"math/rand"

	"golang.org/x/image/draw"

	"github.com/born-ml/adain/internal/imaging"
	"github.com/born-ml/adain/internal/tensor"
)

// LoadOptions controls resizing and cropping.
type LoadOptions struct {
	ResizeShort int // shortest side after resizing
	CropSize    int // side of the square random crop
}

// DefaultLoadOptions resizes to a 512 shortest side and crops 256×256.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{ResizeShort: 512, CropSize: 256}
}

// LoadImage decodes the file at path and prepares it with Prepare.
func LoadImage(path string, opts LoadOptions, rng *rand.Rand) (*tensor.RawTensor, error) {
	img, err := imaging.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	out, err := Prepare(img, opts, rng)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return out, nil
}

// Prepare scales img so its shortest side is opts.ResizeShort (bilinear,
// aspect ratio kept, long side truncated), takes a random
// CropSize×CropSize window and returns it as a (1, S, S, 3) RGB tensor in
// [0, 1].
func Prepare(img image.Image, opts LoadOptions, rng *rand.Rand) (*tensor.RawTensor, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	if h == 0 || w == 0 {
		return nil, fmt.Errorf("empty image")
	}

	scale := float64(opts.ResizeShort) / float64(min(h, w))
	nh, nw := int(float64(h)*scale), int(float64(w)*scale)
	if nh < opts.CropSize || nw < opts.CropSize {
		return nil, fmt.Errorf("resized %dx%d is smaller than crop %d", nw, nh, opts.CropSize)
	}

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	y0 := rng.Intn(nh - opts.CropSize + 1)
	x0 := rng.Intn(nw - opts.CropSize + 1)
	crop := resized.SubImage(image.Rect(x0, y0, x0+opts.CropSize, y0+opts.CropSize))
	return imaging.ToUnit(crop), nil
}
