package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/adain/internal/encoder"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 256, cfg.ImageSize)
	assert.Equal(t, 512, cfg.ResizeShort)
	assert.Equal(t, 4, cfg.Epochs)
	assert.Equal(t, float32(1e-4), cfg.LearningRate)
	assert.Equal(t, float32(5e-5), cfg.LRDecayRate)
	assert.Equal(t, float32(2), cfg.StyleWeight)
	assert.Equal(t, 50, cfg.MaxConsecutiveSkips)
	assert.Equal(t, cfg.BatchSize, cfg.Shuffle())
	assert.Equal(t, encoder.DefaultConfig(), cfg.Encoder())

	// Defaults alone lack data directories.
	require.Error(t, cfg.Validate())
	cfg.Synthetic = 4
	require.NoError(t, cfg.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
content_dir: data/content
style_dir: data/style
batch_size: 2
shuffle_buffer: 16
style_depths: [relu1_1, relu2_1]
bottleneck: relu4_1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BatchSize)
	assert.Equal(t, 16, cfg.Shuffle())
	assert.Equal(t, 256, cfg.ImageSize)
	assert.Equal(t, []encoder.Depth{encoder.Relu1_1, encoder.Relu2_1}, cfg.StyleDepths)
	assert.Equal(t, encoder.Relu4_1, cfg.Bottleneck)
}

func TestLoadEmptyFile(t *testing.T) {
	_, err := Load(writeFile(t, ""))
	require.Error(t, err, "defaults without data directories are invalid")

	cfg, err := Load(writeFile(t, "synthetic: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Synthetic)
}

func TestReadSkipsValidation(t *testing.T) {
	cfg, err := Read(writeFile(t, "epochs: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Epochs)
	require.Error(t, cfg.Validate())

	_, err = Read(writeFile(t, "epochs: [1]\n"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "synthetic: 2\nbatchsize: 3\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Synthetic = 1
	cfg.BatchSize = 0
	cfg.ImageSize = 8
	cfg.LearningRate = 0
	cfg.Bottleneck = "relu9_9"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"batch_size", "image_size", "learning_rate", "relu9_9"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateBottleneckMatchesDecoder(t *testing.T) {
	cfg := Default()
	cfg.Synthetic = 1
	cfg.Bottleneck = encoder.Relu3_1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bottleneck relu3_1 has 256 channels")
}

func TestValidateStyleWeight(t *testing.T) {
	cfg := Default()
	cfg.Synthetic = 1
	cfg.StyleWeight = 0
	require.NoError(t, cfg.Validate(), "content-only runs are allowed")

	cfg.StyleWeight = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "style_weight")
}

func TestValidateImageSizeFloor(t *testing.T) {
	cfg := Default()
	cfg.Synthetic = 1
	cfg.ImageSize = 9
	cfg.ResizeShort = 9
	require.NoError(t, cfg.Validate())

	cfg.ImageSize = 8
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image_size must be at least 9")
}
