// Package decoder implements the trainable reconstruction network that maps
// relu4_1-depth feature maps back to BGR images at 8× the spatial size.
package decoder

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/internal/tensor"
)

// InputChannels is the channel count of the feature maps Forward accepts.
const InputChannels = 512

type stageSpec struct {
	name     string
	cIn      int
	cOut     int
	upsample bool
}

var architecture = []stageSpec{
	{"conv4_1", 512, 256, true},
	{"conv3_4", 256, 256, false},
	{"conv3_3", 256, 256, false},
	{"conv3_2", 256, 256, false},
	{"conv3_1", 256, 128, true},
	{"conv2_2", 128, 128, false},
	{"conv2_1", 128, 64, true},
	{"conv1_2", 64, 64, false},
	{"conv1_1", 64, 3, false},
}

// Decoder mirrors the encoder: nine reflect-padded 3×3 convolutions with
// nearest-neighbor upsampling after conv4_1, conv3_1 and conv2_1. Every
// stage but the last is followed by a ReLU.
type Decoder struct {
	stages []*nn.ConvStage
}

var _ nn.Module = (*Decoder)(nil)

// New creates a decoder with Glorot-uniform weights drawn from rng.
func New(rng *rand.Rand) *Decoder {
	stages := make([]*nn.ConvStage, len(architecture))
	for i, spec := range architecture {
		last := i == len(architecture)-1
		stages[i] = nn.NewGlorotConvStage(rng, "decoder."+spec.name, spec.cIn, spec.cOut, !last)
	}
	return &Decoder{stages: stages}
}

// Stages returns the convolution stages in forward order.
func (d *Decoder) Stages() []*nn.ConvStage {
	return d.stages
}

// Forward decodes x (N, H, W, 512) into (N, 8H, 8W, 3).
func (d *Decoder) Forward(b *autodiff.Backend, x *tensor.RawTensor) (*tensor.RawTensor, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[3] != InputChannels {
		return nil, fmt.Errorf("decoder: expected (N, H, W, %d) input, got %v", InputChannels, shape)
	}

	out := x
	for i, s := range d.stages {
		var err error
		out, err = s.Forward(b, out)
		if err != nil {
			return nil, fmt.Errorf("decoder: %w", err)
		}
		if architecture[i].upsample {
			out = b.UpsampleNearest(out, 2)
		}
	}
	return out, nil
}

// Parameters returns every kernel and bias in forward order.
func (d *Decoder) Parameters() []*nn.Parameter {
	params := make([]*nn.Parameter, 0, 2*len(d.stages))
	for _, s := range d.stages {
		params = append(params, s.Parameters()...)
	}
	return params
}

// StateDict maps parameter names ("decoder.<stage>.kernel|bias") to their
// tensors. The tensors are shared, not copied.
func (d *Decoder) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(d.stages))
	for _, p := range d.Parameters() {
		state[p.Name()] = p.Tensor()
	}
	return state
}

// LoadStateDict copies weights from state into the decoder. Every parameter
// must be present with a matching shape; extra entries are rejected.
func (d *Decoder) LoadStateDict(state map[string]*tensor.RawTensor) error {
	params := d.Parameters()
	if len(state) != len(params) {
		return fmt.Errorf("decoder: state has %d tensors, want %d", len(state), len(params))
	}
	for _, p := range params {
		src, ok := state[p.Name()]
		if !ok {
			return fmt.Errorf("decoder: missing tensor %q", p.Name())
		}
		if err := p.Tensor().CopyFrom(src); err != nil {
			return fmt.Errorf("decoder: tensor %q: %w", p.Name(), err)
		}
	}
	return nil
}
