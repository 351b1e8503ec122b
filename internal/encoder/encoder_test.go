package encoder

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/adain/internal/autodiff"
	"github.com/born-ml/adain/internal/backend/cpu"
	"github.com/born-ml/adain/internal/tensor"
)

// writeNPY writes a little-endian float32 array with an explicit shape.
func writeNPY(w io.Writer, shape []int, data []float32) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	shapeStr := "(" + strings.Join(dims, ", ") + ")"
	if len(shape) == 1 {
		shapeStr = fmt.Sprintf("(%d,)", shape[0])
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': %s, }", shapeStr)
	total := 10 + len(header) + 1
	header += strings.Repeat(" ", (64-total%64)%64) + "\n"

	if _, err := io.WriteString(w, "\x93NUMPY\x01\x00"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

type entry struct {
	kernelShape []int // (Cout, Cin, KH, KW)
	kernel      []float32
	bias        []float32
}

func writeArchive(t *testing.T, entries []entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.npz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	zw := zip.NewWriter(f)
	for i, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: fmt.Sprintf("arr_%d.npy", 2*i), Method: zip.Store})
		require.NoError(t, err)
		require.NoError(t, writeNPY(w, e.kernelShape, e.kernel))

		w, err = zw.CreateHeader(&zip.FileHeader{Name: fmt.Sprintf("arr_%d.npy", 2*i+1), Method: zip.Store})
		require.NoError(t, err)
		require.NoError(t, npy.Write(w, e.bias))
	}
	require.NoError(t, zw.Close())
	return path
}

func sequence(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

var tinyManifest = []StageSpec{
	{Name: "a", KernelShape: [4]int{3, 3, 2, 4}},
	{Name: "b", KernelShape: [4]int{3, 3, 4, 1}},
}

func tinyEntries() []entry {
	return []entry{
		{kernelShape: []int{4, 2, 3, 3}, kernel: sequence(4 * 2 * 9), bias: []float32{1, 2, 3, 4}},
		{kernelShape: []int{1, 4, 3, 3}, kernel: sequence(4 * 9), bias: []float32{5}},
	}
}

func TestLoadStagesTransposesKernels(t *testing.T) {
	path := writeArchive(t, tinyEntries())
	stages, err := loadStages(path, tinyManifest)
	require.NoError(t, err)
	require.Len(t, stages, 2)

	k := stages[0].Kernel.Tensor()
	assert.Equal(t, tensor.Shape{3, 3, 2, 4}, k.Shape())
	// HWIO[i][j][c][o] == OIHW[o][c][i][j]
	for o := 0; o < 4; o++ {
		for c := 0; c < 2; c++ {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					assert.Equal(t, float32(((o*2+c)*3+i)*3+j), k.At(i, j, c, o))
				}
			}
		}
	}
	assert.Equal(t, []float32{1, 2, 3, 4}, stages[0].Bias.Tensor().Data())
	assert.False(t, stages[0].Trainable)
	assert.True(t, stages[0].Activate)
}

func TestLoadStagesIgnoresTrailingEntries(t *testing.T) {
	entries := append(tinyEntries(), entry{kernelShape: []int{2, 1, 3, 3}, kernel: sequence(18), bias: []float32{0, 0}})
	stages, err := loadStages(writeArchive(t, entries), tinyManifest)
	require.NoError(t, err)
	assert.Len(t, stages, 2)
}

func TestLoadStagesErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loadStages(filepath.Join(t.TempDir(), "nope.npz"), tinyManifest)
		var ae *ArchiveError
		require.ErrorAs(t, err, &ae)
		assert.Empty(t, ae.Entry)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := loadStages(writeArchive(t, tinyEntries()[:1]), tinyManifest)
		var ae *ArchiveError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "arr_2", ae.Entry)
		assert.Equal(t, "b", ae.Stage)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		entries := tinyEntries()
		entries[1].bias = []float32{5, 6}
		_, err := loadStages(writeArchive(t, entries), tinyManifest)
		var ae *ArchiveError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "arr_3", ae.Entry)
		assert.Contains(t, ae.Error(), "shape")
	})

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.npz")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))
		_, err := loadStages(path, tinyManifest)
		var ae *ArchiveError
		require.True(t, errors.As(err, &ae))
	})
}

func fullEntries(rng *rand.Rand) []entry {
	entries := make([]entry, len(Manifest))
	for i, spec := range Manifest {
		ks := spec.KernelShape
		kernel := make([]float32, ks[0]*ks[1]*ks[2]*ks[3])
		for j := range kernel {
			kernel[j] = float32(rng.NormFloat64() * 0.05)
		}
		entries[i] = entry{
			kernelShape: []int{ks[3], ks[2], ks[0], ks[1]},
			kernel:      kernel,
			bias:        make([]float32, ks[3]),
		}
	}
	return entries
}

func TestLoadBuildsEncoder(t *testing.T) {
	path := writeArchive(t, fullEntries(rand.New(rand.NewSource(1))))
	enc, err := Load(path, DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, enc.Stages(), len(Manifest))

	b := autodiff.New(cpu.New())
	feats, err := enc.Extract(b, tensor.Full(tensor.Shape{1, 16, 16, 3}, 10))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2, 512}, feats[Relu4_1].Shape())
}

func TestConfigValidate(t *testing.T) {
	last, err := DefaultConfig().Validate()
	require.NoError(t, err)
	assert.Equal(t, len(layers)-1, last)

	last, err = Config{StyleDepths: []Depth{Relu1_1}, Bottleneck: Relu2_1}.Validate()
	require.NoError(t, err)
	assert.Equal(t, 3, last)

	_, err = Config{StyleDepths: []Depth{"relu5_1"}, Bottleneck: Relu4_1}.Validate()
	require.Error(t, err)

	_, err = Config{StyleDepths: []Depth{"pool1"}, Bottleneck: Relu4_1}.Validate()
	require.Error(t, err)

	_, err = Config{Bottleneck: Relu4_1}.Validate()
	require.Error(t, err)
}

func TestExtractShapes(t *testing.T) {
	enc, err := NewRandom(rand.New(rand.NewSource(2)), DefaultConfig())
	require.NoError(t, err)

	b := autodiff.New(cpu.New())
	x := randomImage(rand.New(rand.NewSource(3)), 2, 16, 16)
	feats, err := enc.Extract(b, x)
	require.NoError(t, err)

	require.Len(t, feats, 4)
	assert.Equal(t, tensor.Shape{2, 16, 16, 64}, feats[Relu1_1].Shape())
	assert.Equal(t, tensor.Shape{2, 8, 8, 128}, feats[Relu2_1].Shape())
	assert.Equal(t, tensor.Shape{2, 4, 4, 256}, feats[Relu3_1].Shape())
	assert.Equal(t, tensor.Shape{2, 2, 2, 512}, feats[Relu4_1].Shape())
	for _, f := range feats {
		for _, v := range f.Data() {
			assert.GreaterOrEqual(t, v, float32(0))
		}
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	enc, err := NewRandom(rand.New(rand.NewSource(4)), DefaultConfig())
	require.NoError(t, err)
	b := autodiff.New(cpu.New())
	x := randomImage(rand.New(rand.NewSource(5)), 1, 24, 20)

	first, err := enc.Extract(b, x)
	require.NoError(t, err)
	second, err := enc.Extract(b, x)
	require.NoError(t, err)
	for d, f := range first {
		assert.Equal(t, f.Data(), second[d].Data(), "depth %s", d)
	}
}

func TestExtractStopsAtDeepestDepth(t *testing.T) {
	cfg := Config{StyleDepths: []Depth{Relu1_1}, Bottleneck: Relu2_1}
	enc, err := NewRandom(rand.New(rand.NewSource(6)), cfg)
	require.NoError(t, err)

	b := autodiff.New(cpu.New())
	feats, err := enc.Extract(b, randomImage(rand.New(rand.NewSource(7)), 1, 4, 4))
	require.NoError(t, err)
	assert.Len(t, feats, 2)
	assert.NotContains(t, feats, Relu4_1)
}

func TestExtractRejectsBadInput(t *testing.T) {
	enc, err := NewRandom(rand.New(rand.NewSource(8)), DefaultConfig())
	require.NoError(t, err)
	b := autodiff.New(cpu.New())

	_, err = enc.Extract(b, tensor.Zeros(tensor.Shape{1, 16, 16, 4}))
	require.Error(t, err)
	// 4 → 2 → 1 leaves nothing to reflect at conv3_1.
	_, err = enc.Extract(b, tensor.Zeros(tensor.Shape{1, 4, 4, 3}))
	require.Error(t, err)
}

func TestNewRejectsTrainableStages(t *testing.T) {
	enc, err := NewRandom(rand.New(rand.NewSource(9)), DefaultConfig())
	require.NoError(t, err)
	stages := enc.Stages()
	stages[0].Trainable = true
	_, err = New(stages, DefaultConfig())
	require.Error(t, err)

	_, err = New(stages[:3], DefaultConfig())
	require.Error(t, err)
}

func TestGradientFlowsThroughFrozenEncoder(t *testing.T) {
	enc, err := NewRandom(rand.New(rand.NewSource(10)), DefaultConfig())
	require.NoError(t, err)

	b := autodiff.New(cpu.New())
	x := randomImage(rand.New(rand.NewSource(11)), 1, 16, 16)
	b.Watch(x)
	b.Tape().StartRecording()

	feats, err := enc.Extract(b, x)
	require.NoError(t, err)
	loss := b.StyleLoss(tensor.Full(feats[Relu2_1].Shape(), 1), feats[Relu2_1], 1e-5)
	grads := b.Backward(loss)

	require.Contains(t, grads, x)
	for _, s := range enc.Stages() {
		assert.NotContains(t, grads, s.Kernel.Tensor())
		assert.NotContains(t, grads, s.Bias.Tensor())
	}
}

func randomImage(rng *rand.Rand, n, h, w int) *tensor.RawTensor {
	x := tensor.Zeros(tensor.Shape{n, h, w, 3})
	for i := range x.Data() {
		x.Data()[i] = float32(rng.Float64()*255 - 120)
	}
	return x
}

func TestChannelsAndMinSide(t *testing.T) {
	assert.Equal(t, 512, Channels(Relu4_1))
	assert.Equal(t, 256, Channels(Relu3_1))
	assert.Equal(t, 64, Channels(Relu1_1))
	assert.Zero(t, Channels("pool1"))
	assert.Zero(t, Channels("relu9_9"))

	assert.Equal(t, 9, DefaultConfig().MinSide())
	assert.Equal(t, 5, Config{Bottleneck: Relu3_1}.MinSide())
	assert.Equal(t, 2, Config{Bottleneck: Relu1_1}.MinSide())
	assert.Equal(t, 9, Config{Bottleneck: "relu9_9"}.MinSide())
}

func TestMinSideIsSmallestAccepted(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	enc, err := NewRandom(rng, DefaultConfig())
	require.NoError(t, err)
	b := autodiff.New(cpu.New())

	side := DefaultConfig().MinSide()
	out, err := enc.Bottleneck(b, tensor.Zeros(tensor.Shape{1, side, side, 3}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2, 512}, out.Shape())

	_, err = enc.Bottleneck(b, tensor.Zeros(tensor.Shape{1, side - 1, side - 1, 3}))
	require.Error(t, err)
}
