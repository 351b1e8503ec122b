// Package autodiff implements reverse-mode automatic differentiation over
// the CPU backend.
//
// A GradientTape records operations whose inputs depend on a watched
// tensor. Trainable parameters are watched explicitly; every recorded
// output becomes watched in turn, so anything computed purely from
// constants (fixed encoder weights applied to a data batch, style
// statistics) never reaches the tape.
package autodiff

import (
	"github.com/born-ml/adain/internal/autodiff/ops"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.Watch(kernel)
//	tape.StartRecording()
//	// ... perform operations through a Backend ...
//	grads := tape.Backward(loss, cpu)
type GradientTape struct {
	operations []ops.Operation
	watched    map[*tensor.RawTensor]struct{}
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
		watched:    make(map[*tensor.RawTensor]struct{}),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Watch marks tensors as gradient sources.
func (t *GradientTape) Watch(ts ...*tensor.RawTensor) {
	for _, x := range ts {
		t.watched[x] = struct{}{}
	}
}

// IsWatched reports whether x is watched or was produced by a recorded
// operation.
func (t *GradientTape) IsWatched(x *tensor.RawTensor) bool {
	_, ok := t.watched[x]
	return ok
}

// Tracks reports whether an operation over these inputs would be recorded.
func (t *GradientTape) Tracks(inputs ...*tensor.RawTensor) bool {
	if !t.recording {
		return false
	}
	for _, in := range inputs {
		if t.IsWatched(in) {
			return true
		}
	}
	return false
}

// Record adds an operation to the tape if it is recording and any input is
// watched. The operation's output becomes watched.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.Tracks(op.Inputs()...) {
		return
	}
	t.operations = append(t.operations, op)
	t.watched[op.Output()] = struct{}{}
}

// Len returns the number of recorded operations.
func (t *GradientTape) Len() int {
	return len(t.operations)
}

// Clear removes all recorded operations and watched tensors.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
	clear(t.watched)
}

// Backward walks the tape in reverse from loss, seeded with ones, and
// returns the accumulated gradient of every watched leaf tensor that the
// loss depends on. Intermediate gradients are released as soon as their
// producing operation has been processed.
func (t *GradientTape) Backward(loss *tensor.RawTensor, backend *cpu.CPUBackend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 || !t.IsWatched(loss) {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[loss] = tensor.Full(loss.Shape(), 1)

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outputGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		delete(grads, op.Output())

		inputGrads := op.Backward(outputGrad, backend)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil || !t.IsWatched(input) {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = backend.AddScaled(existing, inputGrads[j], 1)
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}

	return grads
}
