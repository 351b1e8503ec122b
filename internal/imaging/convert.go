package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/born-ml/adain/internal/tensor"
)

// ToImage converts sample i of a network-space BGR batch into an RGBA
// image: add the mean, reverse to RGB, clamp, round.
func ToImage(x *tensor.RawTensor, i int) (*image.RGBA, error) {
	if err := require3(x); err != nil {
		return nil, err
	}
	n, h, w, _ := x.Dims4()
	if i < 0 || i >= n {
		return nil, fmt.Errorf("imaging: sample %d out of range [0, %d)", i, n)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for xx := 0; xx < w; xx++ {
			b := quantize(x.At(i, y, xx, 0) + MeanBGR[0])
			g := quantize(x.At(i, y, xx, 1) + MeanBGR[1])
			r := quantize(x.At(i, y, xx, 2) + MeanBGR[2])
			img.SetRGBA(xx, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return img, nil
}

func quantize(v float32) uint8 {
	if math.IsNaN(float64(v)) || v <= 0 {
		return 0
	}
	if v >= PixelMax {
		return PixelMax
	}
	return uint8(math.Round(float64(v)))
}

// ToRGBA returns img as an *image.RGBA anchored at the origin, converting
// if needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// ToUnit converts img into a (1, H, W, 3) RGB tensor in [0, 1].
func ToUnit(img image.Image) *tensor.RawTensor {
	rgba := ToRGBA(img)
	bounds := rgba.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	out := tensor.Zeros(tensor.Shape{1, h, w, 3})
	dst := out.Data()
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			p := (y*w + x) * 3
			dst[p] = float32(row[4*x]) / PixelMax
			dst[p+1] = float32(row[4*x+1]) / PixelMax
			dst[p+2] = float32(row[4*x+2]) / PixelMax
		}
	}
	return out
}
