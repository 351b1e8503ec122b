// Package train runs the decoder training loop: encode, transfer
// statistics, decode, re-encode, compose the loss and update the decoder
// with Adam. Only decoder parameters are ever updated.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/born-ml/adain/internal/adain"
	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/dataset"
	"github.com/born-ml/adain/internal/decoder"
	"github.com/born-ml/adain/internal/encoder"
	"github.com/born-ml/adain/internal/imaging"
	"github.com/born-ml/adain/internal/loss"
	"github.com/born-ml/adain/internal/metrics"
	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/internal/optim"
	"github.com/born-ml/adain/internal/serialization"
	"github.com/born-ml/adain/internal/tensor"
)

var (
	// ErrDiverged is returned when too many consecutive steps produce a
	// non-finite loss or gradient.
	ErrDiverged = errors.New("train: training diverged")

	// ErrBatchMismatch is returned when the style and content batches of a
	// step differ in size or channel count.
	ErrBatchMismatch = errors.New("train: style and content batches differ")
)

// Config holds configuration for a Trainer.
type Config struct {
	StyleWeight         *float32       // Weight of the style term; nil means loss.DefaultStyleWeight
	Schedule            optim.Schedule // Learning rate (default: optim.DefaultInverseTimeDecay())
	MaxConsecutiveSkips int            // Skips in a row before ErrDiverged (default: 50)
	Checkpoint          string         // Decoder checkpoint path; empty disables saving
	CheckpointEvery     int            // Save every N applied steps; 0 saves only at the end
	RunID               string
	Logger              *slog.Logger // default: slog.Default()
}

// StepResult describes one attempted step.
type StepResult struct {
	Loss     loss.Result
	LR       float32
	Skipped  bool
	Reason   string // why the step was skipped
	Duration time.Duration
}

// Trainer owns the decoder, its optimizer and the training position.
type Trainer struct {
	backend *autodiff.Backend
	enc     *encoder.Encoder
	dec     *decoder.Decoder
	loss    *loss.Composer
	opt     *optim.Adam
	params  []*nn.Parameter
	sink    metrics.Sink
	cfg     Config

	epoch       int   // completed epochs
	step        int64 // attempted steps
	consecutive int   // skipped steps in a row
	lastLoss    float32
}

// New creates a trainer for dec against the frozen encoder enc.
func New(enc *encoder.Encoder, dec *decoder.Decoder, cfg Config, sink metrics.Sink) *Trainer {
	styleWeight := float32(loss.DefaultStyleWeight)
	if cfg.StyleWeight != nil {
		styleWeight = *cfg.StyleWeight
	}
	if cfg.Schedule == nil {
		cfg.Schedule = optim.DefaultInverseTimeDecay()
	}
	if cfg.MaxConsecutiveSkips <= 0 {
		cfg.MaxConsecutiveSkips = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if sink == nil {
		sink = metrics.MultiSink()
	}

	params := dec.Parameters()
	return &Trainer{
		backend: autodiff.New(cpu.New()),
		enc:     enc,
		dec:     dec,
		loss:    loss.New(enc, styleWeight),
		opt:     optim.NewAdam(params, optim.AdamConfig{Schedule: cfg.Schedule}),
		params:  params,
		sink:    sink,
		cfg:     cfg,
	}
}

// Decoder returns the decoder being trained.
func (t *Trainer) Decoder() *decoder.Decoder {
	return t.dec
}

// Optimizer returns the decoder's optimizer.
func (t *Trainer) Optimizer() *optim.Adam {
	return t.opt
}

// Epoch returns the number of completed epochs.
func (t *Trainer) Epoch() int {
	return t.epoch
}

// Steps returns the number of attempted steps, applied or skipped.
func (t *Trainer) Steps() int64 {
	return t.step
}

// Step trains on one batch. style and content are (N, H, W, 3) RGB
// batches in [0, 1] with the same N; their spatial sizes may differ. A
// step whose loss or gradient is not finite leaves the decoder untouched
// and reports Skipped.
func (t *Trainer) Step(style, content *tensor.RawTensor) (StepResult, error) {
	if !sameBatch(style.Shape(), content.Shape()) {
		return StepResult{}, fmt.Errorf("%w: style %v, content %v", ErrBatchMismatch, style.Shape(), content.Shape())
	}

	start := time.Now()
	t.step++
	b := t.backend
	tape := b.Tape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	res := StepResult{LR: t.opt.GetLR()}
	l, err := t.forward(style, content)
	if err != nil {
		return res, err
	}
	res.Loss = l

	switch {
	case !l.Finite():
		res.Skipped, res.Reason = true, "non-finite loss"
	default:
		grads := b.Backward(l.Loss)
		nn.CollectGrads(t.params, grads)
		if !nn.GradsFinite(t.params) {
			res.Skipped, res.Reason = true, "non-finite gradient"
			break
		}
		t.opt.Step(grads)
	}
	t.opt.ZeroGrad()
	res.Duration = time.Since(start)
	return res, nil
}

// sameBatch reports whether two NHWC shapes agree on N and C.
func sameBatch(a, b tensor.Shape) bool {
	return len(a) == 4 && len(b) == 4 && a[0] == b[0] && a[3] == b[3]
}

// forward records the graph from the decoder parameters to the loss.
// Image and feature constants are computed on unwatched tensors and so
// stay off the tape.
func (t *Trainer) forward(style, content *tensor.RawTensor) (loss.Result, error) {
	b := t.backend
	styleImg, err := imaging.FromUnit(b, style)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: style batch: %w", err)
	}
	contentImg, err := imaging.FromUnit(b, content)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: content batch: %w", err)
	}

	styleFeats, err := t.enc.Extract(b, styleImg)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: %w", err)
	}
	contentFeat, err := t.enc.Bottleneck(b, contentImg)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: %w", err)
	}
	target, err := adain.Transfer(b, styleFeats[t.enc.Config().Bottleneck], contentFeat)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: %w", err)
	}

	for _, p := range t.params {
		b.Watch(p.Tensor())
	}
	decoded, err := t.dec.Forward(b, target)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: %w", err)
	}
	decoded, err = imaging.Renormalize(b, decoded)
	if err != nil {
		return loss.Result{}, fmt.Errorf("train: %w", err)
	}
	return t.loss.ComputeFeatures(b, target, styleFeats, decoded)
}

// Run trains until epochs epochs have completed, counting epochs already
// restored from a checkpoint. When ctx is canceled the current position is
// checkpointed and ctx.Err() returned.
func (t *Trainer) Run(ctx context.Context, loader *dataset.Loader, epochs int) error {
	for t.epoch < epochs {
		if err := t.runEpoch(ctx, loader); err != nil {
			if ctx.Err() != nil {
				if serr := t.checkpoint(); serr != nil {
					return errors.Join(err, serr)
				}
			}
			return err
		}
	}
	return t.checkpoint()
}

func (t *Trainer) runEpoch(ctx context.Context, loader *dataset.Loader) error {
	var (
		start   = time.Now()
		mean    metrics.Mean
		skipped int
	)
	// Stops the loader when the epoch ends early.
	epochCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for r := range loader.Epoch(epochCtx, t.epoch) {
		if r.Err != nil {
			return fmt.Errorf("train: epoch %d: %w", t.epoch, r.Err)
		}
		res, err := t.Step(r.Batch.Style, r.Batch.Content)
		if err != nil {
			return err
		}

		if res.Skipped {
			skipped++
			t.consecutive++
			t.sink.Warn(t.step, res.Reason)
			if t.consecutive >= t.cfg.MaxConsecutiveSkips {
				return fmt.Errorf("%w: %d consecutive steps skipped", ErrDiverged, t.consecutive)
			}
			continue
		}

		t.consecutive = 0
		t.lastLoss = res.Loss.Total
		mean.Add(float64(res.Loss.Total))
		t.sink.Step(metrics.StepMetrics{
			Epoch:    t.epoch,
			Step:     t.step,
			Loss:     res.Loss.Total,
			Content:  res.Loss.Content,
			Style:    res.Loss.Style,
			LR:       res.LR,
			Duration: res.Duration,
		})
		if every := t.cfg.CheckpointEvery; every > 0 && t.opt.GetTimestep()%every == 0 {
			if err := t.checkpoint(); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.sink.Epoch(metrics.EpochMetrics{
		Epoch:    t.epoch,
		MeanLoss: mean.Value(),
		Steps:    mean.Count(),
		Skipped:  skipped,
		Duration: time.Since(start),
	})
	t.epoch++
	return nil
}

func (t *Trainer) checkpoint() error {
	if t.cfg.Checkpoint == "" {
		return nil
	}
	if err := t.Save(t.cfg.Checkpoint); err != nil {
		return err
	}
	t.cfg.Logger.Info("checkpoint saved", "path", t.cfg.Checkpoint, "epoch", t.epoch, "step", t.step)
	return nil
}

// OptimizerPath returns where the optimizer state of the checkpoint at path
// is kept: "decoder.safetensors" pairs with "decoder.optim.safetensors".
func OptimizerPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".optim" + ext
}

// Save writes the decoder to path and the optimizer state next to it.
func (t *Trainer) Save(path string) error {
	meta := serialization.CheckpointMeta{
		RunID: t.cfg.RunID,
		Epoch: t.epoch,
		Step:  t.step,
		Loss:  float64(t.lastLoss),
	}
	if err := t.dec.Save(path, meta); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if err := serialization.WriteSafeTensors(OptimizerPath(path), t.opt.StateDict(), meta.Map()); err != nil {
		return fmt.Errorf("train: save optimizer: %w", err)
	}
	return nil
}

// Restore loads decoder weights and the training position from a
// checkpoint written by Save. Optimizer state is restored when its file
// exists; otherwise the moments start from zero.
func (t *Trainer) Restore(path string) error {
	saved, meta, err := decoder.Load(path)
	if err != nil {
		return fmt.Errorf("train: restore: %w", err)
	}
	if err := t.dec.LoadStateDict(saved.StateDict()); err != nil {
		return fmt.Errorf("train: restore: %w", err)
	}

	optState, _, err := serialization.ReadSafeTensors(OptimizerPath(path))
	switch {
	case err == nil:
		if err := t.opt.LoadStateDict(optState); err != nil {
			return fmt.Errorf("train: restore optimizer: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		t.cfg.Logger.Warn("no optimizer state, moments reset", "path", OptimizerPath(path))
	default:
		return fmt.Errorf("train: restore optimizer: %w", err)
	}

	t.epoch = meta.Epoch
	t.step = meta.Step
	t.lastLoss = float32(meta.Loss)
	if meta.RunID != "" {
		t.cfg.RunID = meta.RunID
	}
	return nil
}

// RunID returns the run identifier stamped into checkpoints.
func (t *Trainer) RunID() string {
	return t.cfg.RunID
}
