package encoder

import "fmt"

// Depth names a post-activation feature map, e.g. "relu3_1".
type Depth string

// Default depths used by the style loss and the transfer bottleneck.
const (
	Relu1_1 Depth = "relu1_1"
	Relu2_1 Depth = "relu2_1"
	Relu3_1 Depth = "relu3_1"
	Relu4_1 Depth = "relu4_1"
)

// StageSpec describes one fixed convolution stage of the extractor.
// KernelShape is (KH, KW, Cin, Cout).
type StageSpec struct {
	Name        string
	KernelShape [4]int
}

// Manifest lists the extractor's convolution stages in archive order:
// entry arr_{2i} holds stage i's kernel and arr_{2i+1} its bias.
var Manifest = []StageSpec{
	{Name: "conv1_1", KernelShape: [4]int{3, 3, 3, 64}},
	{Name: "conv1_2", KernelShape: [4]int{3, 3, 64, 64}},
	{Name: "conv2_1", KernelShape: [4]int{3, 3, 64, 128}},
	{Name: "conv2_2", KernelShape: [4]int{3, 3, 128, 128}},
	{Name: "conv3_1", KernelShape: [4]int{3, 3, 128, 256}},
	{Name: "conv3_2", KernelShape: [4]int{3, 3, 256, 256}},
	{Name: "conv3_3", KernelShape: [4]int{3, 3, 256, 256}},
	{Name: "conv3_4", KernelShape: [4]int{3, 3, 256, 256}},
	{Name: "conv4_1", KernelShape: [4]int{3, 3, 256, 512}},
}

// layer is one step of the forward pass: either a convolution stage
// (followed by its ReLU, named depth) or a max-pool.
type layer struct {
	stage int // index into Manifest, -1 for pool
	name  string
	depth Depth
}

// layers is the VGG-19 prefix up to relu4_1.
var layers = []layer{
	{stage: 0, name: "conv1_1", depth: "relu1_1"},
	{stage: 1, name: "conv1_2", depth: "relu1_2"},
	{stage: -1, name: "pool1"},
	{stage: 2, name: "conv2_1", depth: "relu2_1"},
	{stage: 3, name: "conv2_2", depth: "relu2_2"},
	{stage: -1, name: "pool2"},
	{stage: 4, name: "conv3_1", depth: "relu3_1"},
	{stage: 5, name: "conv3_2", depth: "relu3_2"},
	{stage: 6, name: "conv3_3", depth: "relu3_3"},
	{stage: 7, name: "conv3_4", depth: "relu3_4"},
	{stage: -1, name: "pool3"},
	{stage: 8, name: "conv4_1", depth: "relu4_1"},
}

// Config selects which feature maps Extract returns.
type Config struct {
	StyleDepths []Depth
	Bottleneck  Depth
}

// DefaultConfig returns relu1_1..relu4_1 style depths with a relu4_1
// bottleneck.
func DefaultConfig() Config {
	return Config{
		StyleDepths: []Depth{Relu1_1, Relu2_1, Relu3_1, Relu4_1},
		Bottleneck:  Relu4_1,
	}
}

// Depths returns the bottleneck followed by the style depths, without
// duplicates.
func (c Config) Depths() []Depth {
	out := []Depth{c.Bottleneck}
	for _, d := range c.StyleDepths {
		dup := false
		for _, o := range out {
			if o == d {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks that every requested depth exists and returns the index
// of the last layer extraction has to run.
func (c Config) Validate() (int, error) {
	if len(c.StyleDepths) == 0 {
		return 0, fmt.Errorf("encoder: no style depths configured")
	}
	last := -1
	for _, d := range c.Depths() {
		idx := layerIndex(d)
		if idx < 0 {
			return 0, fmt.Errorf("encoder: unknown depth %q", d)
		}
		last = max(last, idx)
	}
	return last, nil
}

func layerIndex(d Depth) int {
	for i, l := range layers {
		if l.stage >= 0 && l.depth == d {
			return i
		}
	}
	return -1
}

// Channels returns the channel count of the feature map at d, or 0 if d
// is unknown.
func Channels(d Depth) int {
	idx := layerIndex(d)
	if idx < 0 {
		return 0
	}
	return Manifest[layers[idx].stage].KernelShape[3]
}

// MinSide returns the smallest image side that still leaves the bottleneck
// at least 2×2 after the SAME pools in front of it, the least a
// reflection-padded convolution can take. An unknown bottleneck gets the
// floor of the deepest layer.
func (c Config) MinSide() int {
	idx := layerIndex(c.Bottleneck)
	if idx < 0 {
		idx = len(layers) - 1
	}
	side := 2
	for _, l := range layers[:idx] {
		if l.stage < 0 {
			side = 2*side - 1
		}
	}
	return side
}
