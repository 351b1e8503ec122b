// Package cpu implements the NHWC float32 kernels behind every network stage.
//
// Each forward kernel has a matching backward kernel; the autodiff package
// pairs them into recorded operations. Kernels panic on shape violations:
// callers validate user-facing inputs before reaching this layer.
package cpu

import (
	"fmt"

	"github.com/born-ml/adain/internal/parallel"
	"github.com/born-ml/adain/internal/tensor"
)

// CPUBackend runs kernels on the host, fanning out over batch rows.
type CPUBackend struct {
	par parallel.Config
}

// New creates a CPU backend using every available core.
func New() *CPUBackend {
	return &CPUBackend{par: parallel.DefaultConfig()}
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Parallel returns the backend's parallelism settings.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

func require4D(op string, x *tensor.RawTensor) {
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input (N,H,W,C), got shape %v", op, x.Shape()))
	}
}

func requireSameShape(op string, a, b *tensor.RawTensor) {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, a.Shape(), b.Shape()))
	}
}

func parallelRange(n int, cfg parallel.Config, f func(start, end int)) {
	parallel.ForRange(n, f, cfg)
}

// chunked widens the minimum chunk for flat element-wise loops.
func chunked(cpu *CPUBackend) parallel.Config {
	cfg := cpu.par
	cfg.MinChunkSize = max(cfg.MinChunkSize, 1<<14)
	return cfg
}
