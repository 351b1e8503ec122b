// Package optim implements the optimizer and learning-rate schedules used
// to train the decoder.
//
// This package provides:
//   - Optimizer interface: base interface for optimizers
//   - Adam: adaptive moment estimation with Keras-style epsilon
//   - Schedule: Constant and InverseTimeDecay learning rates
//
// Example usage:
//
//	opt := optim.NewAdam(dec.Parameters(), optim.AdamConfig{
//	    Schedule: optim.InverseTimeDecay{Base: 1e-4, DecayRate: 5e-5, DecaySteps: 1},
//	})
//
//	for batch := range batches {
//	    backend.Tape().StartRecording()
//	    loss := forward(batch)
//	    grads := backend.Backward(loss)
//	    opt.Step(grads)
//	    opt.ZeroGrad()
//	}
package optim

import (
	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the learning rate the next Step will use.
	GetLR() float32
}

// getGradient retrieves the gradient for a parameter, falling back to the
// gradient stored on the parameter itself.
//
// Returns nil if neither exists (parameter wasn't part of the graph).
func getGradient(param *nn.Parameter, grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	if g, ok := grads[param.Tensor()]; ok {
		return g
	}
	return param.Grad()
}
