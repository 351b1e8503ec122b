package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/tensor"
)

// KernelSize is the spatial extent of every convolution in the network.
const KernelSize = 3

// ConvStage is reflect-pad 1 → 3×3 stride-1 conv + bias → ReLU.
//
// Kernel layout is HWIO: (3, 3, Cin, Cout). When Activate is false the
// ReLU is omitted. A frozen stage (Trainable == false) passes gradients
// through to its input but exposes no parameters.
type ConvStage struct {
	Name      string
	Kernel    *Parameter
	Bias      *Parameter
	Trainable bool
	Activate  bool
}

var _ Module = (*ConvStage)(nil)

// NewConvStage wraps existing weights. Kernel must be (3, 3, Cin, Cout)
// and bias (Cout).
func NewConvStage(name string, kernel, bias *tensor.RawTensor, trainable, activate bool) (*ConvStage, error) {
	ks := kernel.Shape()
	if len(ks) != 4 || ks[0] != KernelSize || ks[1] != KernelSize {
		return nil, fmt.Errorf("nn: stage %s: kernel shape %v is not (3, 3, Cin, Cout)", name, ks)
	}
	if bs := bias.Shape(); len(bs) != 1 || bs[0] != ks[3] {
		return nil, fmt.Errorf("nn: stage %s: bias shape %v does not match %d output channels", name, bs, ks[3])
	}
	return &ConvStage{
		Name:      name,
		Kernel:    NewParameter(name+".kernel", kernel),
		Bias:      NewParameter(name+".bias", bias),
		Trainable: trainable,
		Activate:  activate,
	}, nil
}

// NewGlorotConvStage creates a trainable stage with Glorot-uniform kernel
// and bias. Kernel fans are 3·3·Cin and 3·3·Cout; the bias uses
// fan_in = fan_out = Cout.
func NewGlorotConvStage(rng *rand.Rand, name string, cIn, cOut int, activate bool) *ConvStage {
	area := KernelSize * KernelSize
	kernel := GlorotUniform(rng, area*cIn, area*cOut, tensor.Shape{KernelSize, KernelSize, cIn, cOut})
	bias := GlorotUniform(rng, cOut, cOut, tensor.Shape{cOut})
	return &ConvStage{
		Name:      name,
		Kernel:    NewParameter(name+".kernel", kernel),
		Bias:      NewParameter(name+".bias", bias),
		Trainable: true,
		Activate:  activate,
	}
}

// InChannels returns Cin.
func (s *ConvStage) InChannels() int {
	return s.Kernel.Tensor().Shape()[2]
}

// OutChannels returns Cout.
func (s *ConvStage) OutChannels() int {
	return s.Kernel.Tensor().Shape()[3]
}

// Forward applies the stage. H and W must both exceed 1 for the
// reflection padding.
func (s *ConvStage) Forward(b *autodiff.Backend, input *tensor.RawTensor) (*tensor.RawTensor, error) {
	shape := input.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("nn: stage %s: expected NHWC input, got %v", s.Name, shape)
	}
	if shape[3] != s.InChannels() {
		return nil, fmt.Errorf("nn: stage %s: input has %d channels, want %d", s.Name, shape[3], s.InChannels())
	}
	if shape[1] < 2 || shape[2] < 2 {
		return nil, fmt.Errorf("nn: stage %s: spatial size %dx%d too small to reflect-pad", s.Name, shape[1], shape[2])
	}

	x := b.ReflectPad(input, 1)
	x = b.Conv2D(x, s.Kernel.Tensor())
	x = b.BiasAdd(x, s.Bias.Tensor())
	if s.Activate {
		x = b.ReLU(x)
	}
	return x, nil
}

// Parameters returns kernel and bias for trainable stages, nothing for
// frozen ones.
func (s *ConvStage) Parameters() []*Parameter {
	if !s.Trainable {
		return nil
	}
	return []*Parameter{s.Kernel, s.Bias}
}
