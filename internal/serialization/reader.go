package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/adain/internal/tensor"
)

// ReadSafeTensors loads every tensor in the file at path along with the
// header metadata.
func ReadSafeTensors(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	tensors, meta, err := Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return tensors, meta, nil
}

// Decode reads a SafeTensors stream. Offsets are validated against the data
// section, and the MetaChecksum entry, if present, is verified.
func Decode(r io.Reader) (map[string]*tensor.RawTensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	meta := map[string]string{}
	infos := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		if name == MetadataKey {
			if err := json.Unmarshal(msg, &meta); err != nil {
				return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, nil, fmt.Errorf("failed to parse tensor %q: %w", name, err)
		}
		infos[name] = info
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := validateInfos(infos, int64(len(data))); err != nil {
		return nil, nil, err
	}
	if sum, ok := meta[MetaChecksum]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, nil, err
		}
	}

	tensors := make(map[string]*tensor.RawTensor, len(infos))
	for name, info := range infos {
		shape := make(tensor.Shape, len(info.Shape))
		for i, d := range info.Shape {
			shape[i] = int(d)
		}
		chunk := data[info.DataOffsets[0]:info.DataOffsets[1]]
		values := make([]float32, len(chunk)/4)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[4*i:]))
		}
		t, err := tensor.FromSlice(values, shape)
		if err != nil {
			return nil, nil, &ValidationError{Type: "shape", Tensor: name, Details: err.Error()}
		}
		tensors[name] = t
	}
	return tensors, meta, nil
}

// validateInfos checks dtypes, sizes, bounds and overlap of every entry.
func validateInfos(infos map[string]TensorInfo, dataSize int64) error {
	names := make([]string, 0, len(infos))
	for name, info := range infos {
		if info.DType != DTypeF32 {
			return &ValidationError{Type: "dtype", Tensor: name, Details: info.DType, Err: ErrUnsupportedDType}
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start || end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  name,
				Details: fmt.Sprintf("offsets [%d, %d) with %d data bytes", start, end, dataSize),
				Err:     ErrOutOfBounds,
			}
		}
		elems := int64(1)
		for _, d := range info.Shape {
			elems *= d
		}
		if elems*4 != end-start {
			return &ValidationError{
				Type:    "size",
				Tensor:  name,
				Details: fmt.Sprintf("shape %v needs %d bytes, offsets span %d", info.Shape, elems*4, end-start),
			}
		}
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return infos[names[i]].DataOffsets[0] < infos[names[j]].DataOffsets[0]
	})
	for i := 1; i < len(names); i++ {
		prev, cur := infos[names[i-1]], infos[names[i]]
		if cur.DataOffsets[0] < prev.DataOffsets[1] {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  names[i-1],
				Tensor2: names[i],
				Details: "data ranges overlap",
				Err:     ErrOffsetOverlap,
			}
		}
	}
	return nil
}
