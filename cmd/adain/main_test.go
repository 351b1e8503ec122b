package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/adain/internal/config"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"", "text", "JSON"} {
		logger, err := newLogger(format, true)
		require.NoError(t, err, format)
		assert.NotNil(t, logger)
	}
	_, err := newLogger("xml", false)
	require.Error(t, err)
}

func TestBuildSource(t *testing.T) {
	cfg := config.Default()
	cfg.Synthetic = 3
	src, err := buildSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	cfg = config.Default()
	cfg.StyleDir, cfg.ContentDir = t.TempDir(), t.TempDir()
	_, err = buildSource(cfg)
	require.Error(t, err, "empty directories")

	require.NoError(t, os.WriteFile(filepath.Join(cfg.StyleDir, "s.jpg"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ContentDir, "c1.png"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ContentDir, "c2.png"), []byte("x"), 0o600))
	src, err = buildSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())
}
