package optim

import "fmt"

// Schedule maps the number of updates already applied to a learning rate.
type Schedule interface {
	LR(step int) float32
	Name() string
}

// Constant is a fixed learning rate.
type Constant float32

// LR returns the fixed rate.
func (c Constant) LR(int) float32 {
	return float32(c)
}

// Name returns the schedule name.
func (c Constant) Name() string {
	return fmt.Sprintf("constant(%g)", float32(c))
}

// InverseTimeDecay computes Base / (1 + DecayRate·step/DecaySteps).
type InverseTimeDecay struct {
	Base       float32
	DecayRate  float32
	DecaySteps float32
}

// DefaultInverseTimeDecay returns base 1e-4, rate 5e-5, one step per decay
// unit.
func DefaultInverseTimeDecay() InverseTimeDecay {
	return InverseTimeDecay{Base: 1e-4, DecayRate: 5e-5, DecaySteps: 1}
}

// LR returns the decayed rate after step updates.
func (d InverseTimeDecay) LR(step int) float32 {
	steps := d.DecaySteps
	if steps <= 0 {
		steps = 1
	}
	return float32(float64(d.Base) / (1 + float64(d.DecayRate)*float64(step)/float64(steps)))
}

// Name returns the schedule name.
func (d InverseTimeDecay) Name() string {
	return fmt.Sprintf("inverse_time_decay(base=%g, rate=%g, steps=%g)", d.Base, d.DecayRate, d.DecaySteps)
}
