package imaging

import (
	"fmt"
	"image"
	_ "image/gif" // registered with image.Decode
	"image/jpeg"
	"image/png"
	"os"

	// Decoders registered with image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads an image file in any registered format (JPEG, PNG, GIF,
// BMP, TIFF, WebP).
func Decode(path string) (image.Image, error) {
	//nolint:gosec // G304: paths come from the dataset listing or the CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imaging: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imaging: decode %s: %w", path, err)
	}
	return img, nil
}

// SavePNG encodes img as PNG at path.
func SavePNG(path string, img image.Image) error {
	return save(path, func(f *os.File) error { return png.Encode(f, img) })
}

// SaveJPEG encodes img as JPEG at path with the given quality (1-100).
func SaveJPEG(path string, img image.Image, quality int) error {
	return save(path, func(f *os.File) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
	})
}

func save(path string, encode func(*os.File) error) error {
	//nolint:gosec // G304: output path comes from the CLI
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imaging: %w", err)
	}
	if err := encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("imaging: encode %s: %w", path, err)
	}
	return f.Close()
}
