package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule, with epsilon applied outside the bias correction as Keras
// does:
//
//	m_t   = beta1 * m_{t-1} + (1-beta1) * g
//	v_t   = beta2 * v_{t-1} + (1-beta2) * g²
//	lr_t  = lr(t-1) * sqrt(1 - beta2^t) / (1 - beta1^t)
//	param = param - lr_t * m_t / (sqrt(v_t) + eps)
//
// The learning rate comes from a Schedule evaluated at the number of
// updates already applied, so a skipped step never advances the decay.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params   []*nn.Parameter
	schedule Schedule
	beta1    float32
	beta2    float32
	eps      float32
	t        int                          // Updates applied so far
	m        map[string]*tensor.RawTensor // First moment estimates by parameter name
	v        map[string]*tensor.RawTensor // Second moment estimates by parameter name
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	Schedule Schedule   // Learning rate schedule (default: Constant(1e-3))
	Betas    [2]float32 // Coefficients for running averages (default: [0.9, 0.999])
	Eps      float32    // Term for numerical stability (default: 1e-7)
}

// NewAdam creates a new Adam optimizer over params.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.Schedule == nil {
		config.Schedule = Constant(1e-3)
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-7
	}

	return &Adam{
		params:   params,
		schedule: config.Schedule,
		beta1:    config.Betas[0],
		beta2:    config.Betas[1],
		eps:      config.Eps,
		m:        make(map[string]*tensor.RawTensor),
		v:        make(map[string]*tensor.RawTensor),
	}
}

// Step performs a single optimization step. Parameters with no gradient
// are skipped.
func (a *Adam) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	lr := a.schedule.LR(a.t)
	a.t++

	biasCorrection1 := 1.0 - math.Pow(float64(a.beta1), float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(float64(a.beta2), float64(a.t))
	stepSize := float32(float64(lr) * math.Sqrt(biasCorrection2) / biasCorrection1)

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param.Name()]
		if !ok {
			m = tensor.Zeros(param.Tensor().Shape())
			a.m[param.Name()] = m
		}
		v, ok := a.v[param.Name()]
		if !ok {
			v = tensor.Zeros(param.Tensor().Shape())
			a.v[param.Name()] = v
		}

		a.updateParameter(param.Tensor().Data(), grad.Data(), m.Data(), v.Data(), stepSize)
	}
}

func (a *Adam) updateParameter(paramData, gradData, mData, vData []float32, stepSize float32) {
	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g
		paramData[i] -= stepSize * mData[i] / (float32(math.Sqrt(float64(vData[i]))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the learning rate of the next step.
func (a *Adam) GetLR() float32 {
	return a.schedule.LR(a.t)
}

// Schedule returns the learning-rate schedule.
func (a *Adam) Schedule() Schedule {
	return a.schedule
}

// GetTimestep returns the number of updates applied.
func (a *Adam) GetTimestep() int {
	return a.t
}

// State keys used by StateDict.
const (
	stateStep    = "adam.step"
	stateMPrefix = "adam.m."
	stateVPrefix = "adam.v."
)

// StateDict returns the moment buffers and timestep, keyed for storage
// next to the model weights.
func (a *Adam) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(a.m)+1)
	state[stateStep] = encodeStep(a.t)
	for name, m := range a.m {
		state[stateMPrefix+name] = m
	}
	for name, v := range a.v {
		state[stateVPrefix+name] = v
	}
	return state
}

// LoadStateDict restores state produced by StateDict. Moment buffers must
// match the shapes of the optimizer's parameters.
func (a *Adam) LoadStateDict(state map[string]*tensor.RawTensor) error {
	stepTensor, ok := state[stateStep]
	if !ok {
		return fmt.Errorf("adam: state is missing %s", stateStep)
	}
	step, err := decodeStep(stepTensor)
	if err != nil {
		return err
	}

	m := make(map[string]*tensor.RawTensor, len(a.params))
	v := make(map[string]*tensor.RawTensor, len(a.params))
	for _, p := range a.params {
		mt, mok := state[stateMPrefix+p.Name()]
		vt, vok := state[stateVPrefix+p.Name()]
		if mok != vok {
			return fmt.Errorf("adam: incomplete moments for %s", p.Name())
		}
		if !mok {
			continue
		}
		if !mt.Shape().Equal(p.Tensor().Shape()) || !vt.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("adam: moment shape mismatch for %s", p.Name())
		}
		m[p.Name()] = mt.Clone()
		v[p.Name()] = vt.Clone()
	}

	a.t = step
	a.m, a.v = m, v
	return nil
}

// stepSplit is the width of the low half of an encoded timestep; float32
// holds integers up to 2^24 exactly.
const stepSplit = 24

// encodeStep stores t as (high, low) float32 halves.
func encodeStep(t int) *tensor.RawTensor {
	out := tensor.Zeros(tensor.Shape{2})
	d := out.Data()
	d[0] = float32(t >> stepSplit)
	d[1] = float32(t & (1<<stepSplit - 1))
	return out
}

// decodeStep reads a timestep written by encodeStep. A single-element
// tensor is read as the step itself.
func decodeStep(x *tensor.RawTensor) (int, error) {
	d := x.Data()
	switch len(d) {
	case 1:
		return int(d[0]), nil
	case 2:
		if d[0] < 0 || d[1] < 0 || d[1] >= 1<<stepSplit {
			return 0, fmt.Errorf("adam: invalid %s %v", stateStep, d)
		}
		return int(d[0])<<stepSplit | int(d[1]), nil
	default:
		return 0, fmt.Errorf("adam: %s has %d elements, want 2", stateStep, len(d))
	}
}
