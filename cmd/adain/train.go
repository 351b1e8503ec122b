package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/born-ml/adain/internal/config"
	"github.com/born-ml/adain/internal/dataset"
	"github.com/born-ml/adain/internal/decoder"
	"github.com/born-ml/adain/internal/encoder"
	"github.com/born-ml/adain/internal/metrics"
	"github.com/born-ml/adain/internal/optim"
	"github.com/born-ml/adain/internal/train"
)

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	weights := fs.String("weights", "", "extractor weight archive (.npz); empty uses random weights")
	contentDir := fs.String("content", "", "content image directory")
	styleDir := fs.String("style", "", "style image directory")
	checkpoint := fs.String("checkpoint", "", "decoder checkpoint output path")
	events := fs.String("events", "", "binary event log path")
	resume := fs.String("resume", "", "checkpoint to resume from")
	epochs := fs.Int("epochs", 0, "number of epochs")
	batch := fs.Int("batch", 0, "batch size")
	lr := fs.Float64("lr", 0, "initial learning rate")
	synthetic := fs.Int("synthetic", 0, "train on N generated pairs instead of image directories")
	seed := fs.Int64("seed", 0, "random seed")
	logFormat := fs.String("log-format", "text", "log format: text or json")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	logger, err := newLogger(*logFormat, *verbose)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		// Validated below, after flag overrides.
		if cfg, err = config.Read(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "weights":
			cfg.Weights = *weights
		case "content":
			cfg.ContentDir = *contentDir
		case "style":
			cfg.StyleDir = *styleDir
		case "checkpoint":
			cfg.Checkpoint = *checkpoint
		case "events":
			cfg.Events = *events
		case "resume":
			cfg.ResumeFrom = *resume
		case "epochs":
			cfg.Epochs = *epochs
		case "batch":
			cfg.BatchSize = *batch
		case "lr":
			cfg.LearningRate = float32(*lr)
		case "synthetic":
			cfg.Synthetic = *synthetic
		case "seed":
			cfg.Seed = *seed
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger = logger.With("run", runID)
	//nolint:gosec // weight initialization
	rng := rand.New(rand.NewSource(cfg.Seed))

	enc, err := buildEncoder(cfg, rng, logger)
	if err != nil {
		return err
	}
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	loader, err := dataset.NewLoader(src, dataset.LoaderConfig{
		BatchSize: cfg.BatchSize,
		Shuffle:   cfg.Shuffle(),
		Prefetch:  cfg.Prefetch,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return err
	}

	sinks := []metrics.Sink{metrics.NewLogSink(logger)}
	if cfg.Events != "" {
		f, err := os.Create(cfg.Events)
		if err != nil {
			return fmt.Errorf("events: %w", err)
		}
		ew := metrics.NewEventWriter(f, runID)
		defer func() {
			if err := ew.Close(); err != nil {
				logger.Error("closing event log", "err", err)
			}
		}()
		sinks = append(sinks, ew)
	}

	trainer := train.New(enc, decoder.New(rng), train.Config{
		StyleWeight: &cfg.StyleWeight,
		Schedule: optim.InverseTimeDecay{
			Base:       cfg.LearningRate,
			DecayRate:  cfg.LRDecayRate,
			DecaySteps: cfg.DecaySteps,
		},
		MaxConsecutiveSkips: cfg.MaxConsecutiveSkips,
		Checkpoint:          cfg.Checkpoint,
		CheckpointEvery:     cfg.CheckpointEvery,
		RunID:               runID,
		Logger:              logger,
	}, metrics.MultiSink(sinks...))
	if cfg.ResumeFrom != "" {
		if err := trainer.Restore(cfg.ResumeFrom); err != nil {
			return err
		}
		logger.Info("resumed", "from", cfg.ResumeFrom, "epoch", trainer.Epoch(), "step", trainer.Steps())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("training",
		"pairs", src.Len(),
		"batches_per_epoch", loader.NumBatches(),
		"epochs", cfg.Epochs,
		"style_depths", cfg.StyleDepths,
		"bottleneck", cfg.Bottleneck,
	)
	err = trainer.Run(ctx, loader, cfg.Epochs)
	if errors.Is(err, context.Canceled) {
		logger.Warn("interrupted", "epoch", trainer.Epoch(), "step", trainer.Steps())
		return nil
	}
	return err
}

func buildEncoder(cfg config.Config, rng *rand.Rand, logger *slog.Logger) (*encoder.Encoder, error) {
	if cfg.Weights == "" {
		logger.Warn("no extractor weights given, using random weights")
		return encoder.NewRandom(rng, cfg.Encoder())
	}
	return encoder.Load(cfg.Weights, cfg.Encoder())
}

func buildSource(cfg config.Config) (dataset.Source, error) {
	if cfg.Synthetic > 0 {
		return dataset.NewSynthetic(cfg.Synthetic, cfg.ImageSize, cfg.Seed), nil
	}
	style, err := dataset.List(cfg.StyleDir, dataset.DefaultExtensions)
	if err != nil {
		return nil, err
	}
	content, err := dataset.List(cfg.ContentDir, dataset.DefaultExtensions)
	if err != nil {
		return nil, err
	}
	if len(style) == 0 || len(content) == 0 {
		return nil, fmt.Errorf("no images found: %d style, %d content", len(style), len(content))
	}
	return dataset.NewFiles(style, content, dataset.LoadOptions{
		ResizeShort: cfg.ResizeShort,
		CropSize:    cfg.ImageSize,
	}), nil
}
