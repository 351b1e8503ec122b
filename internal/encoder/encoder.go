// Package encoder implements the fixed feature extractor: the VGG-19 prefix
// up to relu4_1 with reflection-padded convolutions and SAME max-pooling.
//
// Weights are loaded once from an .npz archive (see Manifest) and never
// change. Gradients flow through the extractor to its input, which is how
// the decoder is trained, but the extractor's own weights never receive
// one.
package encoder

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/internal/tensor"
)

// Features maps each requested depth to its NHWC feature map.
type Features map[Depth]*tensor.RawTensor

// Encoder extracts feature maps at fixed depths.
type Encoder struct {
	stages []*nn.ConvStage
	cfg    Config
	last   int // index into layers of the deepest requested depth
}

// New builds an encoder from stages in Manifest order. Every stage must
// match its manifest entry and be frozen.
func New(stages []*nn.ConvStage, cfg Config) (*Encoder, error) {
	last, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if len(stages) != len(Manifest) {
		return nil, fmt.Errorf("encoder: got %d stages, want %d", len(stages), len(Manifest))
	}
	for i, spec := range Manifest {
		s := stages[i]
		if s.Name != spec.Name {
			return nil, fmt.Errorf("encoder: stage %d is %q, want %q", i, s.Name, spec.Name)
		}
		got := s.Kernel.Tensor().Shape()
		want := tensor.Shape(spec.KernelShape[:])
		if !got.Equal(want) {
			return nil, fmt.Errorf("encoder: stage %s kernel %v, want %v", spec.Name, got, want)
		}
		if s.Trainable {
			return nil, fmt.Errorf("encoder: stage %s must be frozen", spec.Name)
		}
	}
	return &Encoder{stages: stages, cfg: cfg, last: last}, nil
}

// Load reads the weight archive at path and builds an encoder.
func Load(path string, cfg Config) (*Encoder, error) {
	stages, err := LoadStages(path)
	if err != nil {
		return nil, err
	}
	return New(stages, cfg)
}

// NewRandom builds an encoder with frozen Glorot-initialized weights. It is
// meant for smoke runs and tests where no pretrained archive is at hand.
func NewRandom(rng *rand.Rand, cfg Config) (*Encoder, error) {
	stages := make([]*nn.ConvStage, len(Manifest))
	for i, spec := range Manifest {
		s := nn.NewGlorotConvStage(rng, spec.Name, spec.KernelShape[2], spec.KernelShape[3], true)
		s.Trainable = false
		stages[i] = s
	}
	return New(stages, cfg)
}

// Config returns the depth configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Stages returns the frozen convolution stages in Manifest order.
func (e *Encoder) Stages() []*nn.ConvStage {
	return e.stages
}

// Extract runs x (N, H, W, 3), a preprocessed BGR batch, through the
// extractor and returns the bottleneck and style depth feature maps.
// Layers past the deepest requested depth are skipped.
func (e *Encoder) Extract(b *autodiff.Backend, x *tensor.RawTensor) (Features, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[3] != 3 {
		return nil, fmt.Errorf("encoder: expected (N, H, W, 3) input, got %v", shape)
	}

	wanted := make(map[Depth]bool)
	for _, d := range e.cfg.Depths() {
		wanted[d] = true
	}

	feats := make(Features, len(wanted))
	out := x
	for _, l := range layers[:e.last+1] {
		if l.stage < 0 {
			out = b.MaxPool2D(out)
			continue
		}
		var err error
		out, err = e.stages[l.stage].Forward(b, out)
		if err != nil {
			return nil, fmt.Errorf("encoder: %w", err)
		}
		if wanted[l.depth] {
			feats[l.depth] = out
		}
	}
	return feats, nil
}

// Bottleneck extracts only the bottleneck feature map.
func (e *Encoder) Bottleneck(b *autodiff.Backend, x *tensor.RawTensor) (*tensor.RawTensor, error) {
	feats, err := e.Extract(b, x)
	if err != nil {
		return nil, err
	}
	return feats[e.cfg.Bottleneck], nil
}
