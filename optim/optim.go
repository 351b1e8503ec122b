// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizer used to train the decoder.
//
// # Basic Usage
//
//	optimizer := optim.NewAdam(decoder.Parameters(), optim.AdamConfig{
//	    Schedule: optim.DefaultInverseTimeDecay(),
//	})
//
//	grads := backend.Backward(loss)
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"github.com/born-ml/adain/internal/optim"
	"github.com/born-ml/adain/nn"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Schedule maps the number of applied updates to a learning rate.
type Schedule = optim.Schedule

// Constant is a fixed learning rate.
type Constant = optim.Constant

// InverseTimeDecay computes Base / (1 + DecayRate·step/DecaySteps).
type InverseTimeDecay = optim.InverseTimeDecay

// DefaultInverseTimeDecay returns base 1e-4, rate 5e-5 and one step per
// decay unit.
func DefaultInverseTimeDecay() InverseTimeDecay {
	return optim.DefaultInverseTimeDecay()
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	optimizer := optim.NewAdam(
//	    params,
//	    optim.AdamConfig{
//	        Schedule: optim.Constant(1e-4),
//	        Betas:    [2]float32{0.9, 0.999},
//	    },
//	)
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}
