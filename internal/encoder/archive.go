package encoder

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/sbinet/npyio/npy"

	"github.com/born-ml/adain/internal/nn"
	"github.com/born-ml/adain/internal/tensor"
)

// ArchiveError reports a problem with the extractor weight archive.
type ArchiveError struct {
	Path  string // archive path
	Entry string // npz entry, e.g. "arr_4"
	Stage string // manifest stage the entry belongs to
	Err   error
}

func (e *ArchiveError) Error() string {
	var b strings.Builder
	b.WriteString("encoder: weight archive ")
	b.WriteString(e.Path)
	if e.Entry != "" {
		fmt.Fprintf(&b, ": entry %s", e.Entry)
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, " (stage %s)", e.Stage)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// LoadStages reads the frozen convolution stages listed in Manifest from an
// .npz archive. Kernels are stored (Cout, Cin, KH, KW) and transposed to
// (KH, KW, Cin, Cout); biases are (Cout). Entries past the manifest are
// ignored.
func LoadStages(path string) ([]*nn.ConvStage, error) {
	return loadStages(path, Manifest)
}

func loadStages(path string, manifest []StageSpec) ([]*nn.ConvStage, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ArchiveError{Path: path, Err: err}
	}
	defer func() { _ = zr.Close() }()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[strings.TrimSuffix(f.Name, ".npy")] = f
	}

	stages := make([]*nn.ConvStage, len(manifest))
	for i, spec := range manifest {
		ks := spec.KernelShape
		kernelName := fmt.Sprintf("arr_%d", 2*i)
		biasName := fmt.Sprintf("arr_%d", 2*i+1)

		raw, err := readEntry(entries, kernelName, []int{ks[3], ks[2], ks[0], ks[1]})
		if err != nil {
			return nil, &ArchiveError{Path: path, Entry: kernelName, Stage: spec.Name, Err: err}
		}
		bias, err := readEntry(entries, biasName, []int{ks[3]})
		if err != nil {
			return nil, &ArchiveError{Path: path, Entry: biasName, Stage: spec.Name, Err: err}
		}

		kernel := transposeOIHW(raw, ks)
		biasT, err := tensor.FromSlice(bias, tensor.Shape{ks[3]})
		if err != nil {
			return nil, &ArchiveError{Path: path, Entry: biasName, Stage: spec.Name, Err: err}
		}
		stage, err := nn.NewConvStage(spec.Name, kernel, biasT, false, true)
		if err != nil {
			return nil, &ArchiveError{Path: path, Entry: kernelName, Stage: spec.Name, Err: err}
		}
		stages[i] = stage
	}
	return stages, nil
}

// readEntry decodes one .npy member and checks its shape.
func readEntry(entries map[string]*zip.File, name string, want []int) ([]float32, error) {
	f, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("missing entry")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return decodeNPY(rc, want)
}

func decodeNPY(r io.Reader, want []int) ([]float32, error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode npy: %w", err)
	}
	descr := nr.Header.Descr
	if descr.Fortran {
		return nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	if !shapeEqual(descr.Shape, want) {
		return nil, fmt.Errorf("shape %v, want %v", descr.Shape, want)
	}

	switch descr.Type {
	case "<f4":
		var data []float32
		if err := nr.Read(&data); err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		return data, nil
	case "<f8":
		var data []float64
		if err := nr.Read(&data); err != nil {
			return nil, fmt.Errorf("read data: %w", err)
		}
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", descr.Type)
	}
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// transposeOIHW permutes (Cout, Cin, KH, KW) data to (KH, KW, Cin, Cout).
func transposeOIHW(src []float32, ks [4]int) *tensor.RawTensor {
	kh, kw, cIn, cOut := ks[0], ks[1], ks[2], ks[3]
	out := tensor.Zeros(tensor.Shape{kh, kw, cIn, cOut})
	dst := out.Data()
	for o := 0; o < cOut; o++ {
		for c := 0; c < cIn; c++ {
			for i := 0; i < kh; i++ {
				for j := 0; j < kw; j++ {
					dst[((i*kw+j)*cIn+c)*cOut+o] = src[((o*cIn+c)*kh+i)*kw+j]
				}
			}
		}
	}
	return out
}
