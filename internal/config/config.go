// Package config holds the training configuration, loaded from YAML on top
// of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/adain/internal/decoder"
	"github.com/born-ml/adain/internal/encoder"
)

// Config is the full training configuration.
type Config struct {
	// Paths.
	Weights    string `yaml:"weights"`     // extractor .npz archive; empty means random weights
	ContentDir string `yaml:"content_dir"` // content images, searched recursively
	StyleDir   string `yaml:"style_dir"`   // style images, searched recursively
	Checkpoint string `yaml:"checkpoint"`  // decoder output path
	Events     string `yaml:"events"`      // event log path; empty disables it
	ResumeFrom string `yaml:"resume_from"` // decoder checkpoint to continue from

	// Data.
	BatchSize     int   `yaml:"batch_size"`
	ImageSize     int   `yaml:"image_size"`     // random-crop size
	ResizeShort   int   `yaml:"resize_short"`   // shortest side before cropping
	ShuffleBuffer int   `yaml:"shuffle_buffer"` // 0 means BatchSize
	Prefetch      int   `yaml:"prefetch"`
	Synthetic     int   `yaml:"synthetic"` // >0 trains on that many generated pairs
	Epochs        int   `yaml:"epochs"`
	Seed          int64 `yaml:"seed"`

	// Optimization.
	LearningRate        float32 `yaml:"learning_rate"`
	LRDecayRate         float32 `yaml:"lr_decay_rate"`
	DecaySteps          float32 `yaml:"decay_steps"`
	StyleWeight         float32 `yaml:"style_weight"`
	MaxConsecutiveSkips int     `yaml:"max_consecutive_skips"`
	CheckpointEvery     int     `yaml:"checkpoint_every"` // steps; 0 saves only at the end

	// Feature depths.
	StyleDepths []encoder.Depth `yaml:"style_depths"`
	Bottleneck  encoder.Depth   `yaml:"bottleneck"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	enc := encoder.DefaultConfig()
	return Config{
		Checkpoint:          "decoder.safetensors",
		BatchSize:           8,
		ImageSize:           256,
		ResizeShort:         512,
		Prefetch:            2,
		Epochs:              4,
		Seed:                1,
		LearningRate:        1e-4,
		LRDecayRate:         5e-5,
		DecaySteps:          1,
		StyleWeight:         2,
		MaxConsecutiveSkips: 50,
		StyleDepths:         enc.StyleDepths,
		Bottleneck:          enc.Bottleneck,
	}
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read is Load without validation, for callers that apply further
// overrides first. Keys absent from the file keep their default values;
// unknown keys are an error.
func Read(path string) (Config, error) {
	cfg := Default()
	//nolint:gosec // G304: config path comes from the CLI
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Encoder returns the feature depth configuration.
func (c Config) Encoder() encoder.Config {
	return encoder.Config{StyleDepths: c.StyleDepths, Bottleneck: c.Bottleneck}
}

// Shuffle returns the effective shuffle buffer size.
func (c Config) Shuffle() int {
	if c.ShuffleBuffer <= 0 {
		return c.BatchSize
	}
	return c.ShuffleBuffer
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("batch_size", c.BatchSize)
	positive("image_size", c.ImageSize)
	positive("resize_short", c.ResizeShort)
	positive("epochs", c.Epochs)
	positive("prefetch", c.Prefetch)
	positive("max_consecutive_skips", c.MaxConsecutiveSkips)

	if minSide := c.Encoder().MinSide(); c.ImageSize > 0 && c.ImageSize < minSide {
		errs = append(errs, fmt.Errorf("image_size must be at least %d, got %d", minSide, c.ImageSize))
	}
	if c.ResizeShort < c.ImageSize {
		errs = append(errs, fmt.Errorf("resize_short %d is smaller than image_size %d", c.ResizeShort, c.ImageSize))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate))
	}
	if c.LRDecayRate < 0 {
		errs = append(errs, fmt.Errorf("lr_decay_rate must not be negative, got %g", c.LRDecayRate))
	}
	if c.DecaySteps <= 0 {
		errs = append(errs, fmt.Errorf("decay_steps must be positive, got %g", c.DecaySteps))
	}
	if c.StyleWeight < 0 {
		errs = append(errs, fmt.Errorf("style_weight must not be negative, got %g", c.StyleWeight))
	}
	nonNegative := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	nonNegative("shuffle_buffer", c.ShuffleBuffer)
	nonNegative("checkpoint_every", c.CheckpointEvery)
	nonNegative("synthetic", c.Synthetic)
	if c.Synthetic == 0 && (c.ContentDir == "" || c.StyleDir == "") {
		errs = append(errs, errors.New("content_dir and style_dir are required unless synthetic is set"))
	}
	if _, err := c.Encoder().Validate(); err != nil {
		errs = append(errs, err)
	} else if ch := encoder.Channels(c.Bottleneck); ch != decoder.InputChannels {
		errs = append(errs, fmt.Errorf("bottleneck %s has %d channels, the decoder takes %d", c.Bottleneck, ch, decoder.InputChannels))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
