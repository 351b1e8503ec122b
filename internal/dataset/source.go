package dataset

import (
	"image"
	"image/color"
	"math/rand"

	"github.com/born-ml/adain/internal/tensor"
)

// Source yields training pairs by index.
type Source interface {
	Len() int
	// Load returns pair i as two (1, S, S, 3) RGB tensors in [0, 1].
	Load(i int, rng *rand.Rand) (style, content *tensor.RawTensor, err error)
}

// reshuffler is implemented by sources that re-pair their items every
// epoch.
type reshuffler interface {
	Reshuffle(rng *rand.Rand)
}

// Files is a Source over image files on disk.
//
// Style and content lists are shuffled independently at the start of every
// epoch and then zipped, so a style image meets a different content image
// each epoch.
type Files struct {
	style   []string
	content []string
	pairs   []Pair
	opts    LoadOptions
}

// NewFiles creates a file source. The slices are copied.
func NewFiles(style, content []string, opts LoadOptions) *Files {
	f := &Files{
		style:   append([]string(nil), style...),
		content: append([]string(nil), content...),
		opts:    opts,
	}
	f.pairs = NewPairs(f.style, f.content)
	return f
}

// Len returns the number of pairs.
func (f *Files) Len() int {
	return len(f.pairs)
}

// Pairs returns the current pairing.
func (f *Files) Pairs() []Pair {
	return f.pairs
}

// Reshuffle permutes both lists and re-pairs them.
func (f *Files) Reshuffle(rng *rand.Rand) {
	rng.Shuffle(len(f.style), func(i, j int) { f.style[i], f.style[j] = f.style[j], f.style[i] })
	rng.Shuffle(len(f.content), func(i, j int) { f.content[i], f.content[j] = f.content[j], f.content[i] })
	f.pairs = NewPairs(f.style, f.content)
}

// Load decodes and crops pair i.
func (f *Files) Load(i int, rng *rand.Rand) (style, content *tensor.RawTensor, err error) {
	p := f.pairs[i]
	if style, err = LoadImage(p.Style, f.opts, rng); err != nil {
		return nil, nil, err
	}
	if content, err = LoadImage(p.Content, f.opts, rng); err != nil {
		return nil, nil, err
	}
	return style, content, nil
}

// Synthetic is a Source of generated images: each style image is a solid
// color and each content image a two-color diagonal gradient. Pair i is
// the same for a given seed regardless of the rng passed to Load.
type Synthetic struct {
	n    int
	size int
	seed int64
}

// NewSynthetic creates n generated pairs of size×size images.
func NewSynthetic(n, size int, seed int64) *Synthetic {
	return &Synthetic{n: n, size: size, seed: seed}
}

// Len returns the number of pairs.
func (s *Synthetic) Len() int {
	return s.n
}

// Load generates pair i.
func (s *Synthetic) Load(i int, _ *rand.Rand) (style, content *tensor.RawTensor, err error) {
	//nolint:gosec // deterministic test imagery
	rng := rand.New(rand.NewSource(s.seed + int64(i)))
	style = SolidImage(s.size, randomColor(rng))
	content = GradientImage(s.size, randomColor(rng), randomColor(rng))
	return style, content, nil
}

func randomColor(rng *rand.Rand) color.RGBA {
	return color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 0xff}
}

// SolidImage returns a (1, size, size, 3) tensor filled with c.
func SolidImage(size int, c color.RGBA) *tensor.RawTensor {
	out := tensor.Zeros(tensor.Shape{1, size, size, 3})
	d := out.Data()
	for p := 0; p < len(d); p += 3 {
		d[p] = float32(c.R) / 255
		d[p+1] = float32(c.G) / 255
		d[p+2] = float32(c.B) / 255
	}
	return out
}

// GradientImage returns a (1, size, size, 3) tensor blending from a at the
// top-left corner to b at the bottom-right.
func GradientImage(size int, a, b color.RGBA) *tensor.RawTensor {
	out := tensor.Zeros(tensor.Shape{1, size, size, 3})
	denom := float32(max(2*(size-1), 1))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			t := float32(x+y) / denom
			out.Set((float32(a.R)*(1-t)+float32(b.R)*t)/255, 0, y, x, 0)
			out.Set((float32(a.G)*(1-t)+float32(b.G)*t)/255, 0, y, x, 1)
			out.Set((float32(a.B)*(1-t)+float32(b.B)*t)/255, 0, y, x, 2)
		}
	}
	return out
}

// ImageSource is a Source over decoded images held in memory.
func ImageSource(style, content []image.Image, opts LoadOptions) Source {
	return &images{style: style, content: content, opts: opts}
}

type images struct {
	style, content []image.Image
	opts           LoadOptions
}

func (m *images) Len() int {
	return min(len(m.style), len(m.content))
}

func (m *images) Load(i int, rng *rand.Rand) (style, content *tensor.RawTensor, err error) {
	if style, err = Prepare(m.style[i], m.opts, rng); err != nil {
		return nil, nil, err
	}
	if content, err = Prepare(m.content[i], m.opts, rng); err != nil {
		return nil, nil, err
	}
	return style, content, nil
}
