package serialization

import (
	"fmt"
	"strconv"
)

// Format constants.
const (
	FormatName     = "safetensors"
	MetadataKey    = "__metadata__"
	DTypeF32       = "F32"
	MaxHeaderSize  = 100 * 1024 * 1024
	MaxNameLength  = 256
	headerSizeSize = 8
)

// Metadata keys written with every checkpoint.
const (
	MetaFormat   = "format"
	MetaRunID    = "run_id"
	MetaEpoch    = "epoch"
	MetaStep     = "step"
	MetaLoss     = "loss"
	MetaChecksum = "sha256"
)

// TensorInfo is one tensor entry of the JSON header.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// CheckpointMeta contains training state stored alongside the weights.
type CheckpointMeta struct {
	RunID string
	Epoch int
	Step  int64
	Loss  float64
}

// Map converts the checkpoint metadata into header metadata entries.
func (m CheckpointMeta) Map() map[string]string {
	return map[string]string{
		MetaFormat: FormatName,
		MetaRunID:  m.RunID,
		MetaEpoch:  strconv.Itoa(m.Epoch),
		MetaStep:   strconv.FormatInt(m.Step, 10),
		MetaLoss:   strconv.FormatFloat(m.Loss, 'g', -1, 64),
	}
}

// ParseCheckpointMeta reads checkpoint fields back from header metadata.
// Missing fields are left at their zero value.
func ParseCheckpointMeta(meta map[string]string) (CheckpointMeta, error) {
	out := CheckpointMeta{RunID: meta[MetaRunID]}
	var err error
	if v, ok := meta[MetaEpoch]; ok {
		if out.Epoch, err = strconv.Atoi(v); err != nil {
			return out, fmt.Errorf("metadata %s: %w", MetaEpoch, err)
		}
	}
	if v, ok := meta[MetaStep]; ok {
		if out.Step, err = strconv.ParseInt(v, 10, 64); err != nil {
			return out, fmt.Errorf("metadata %s: %w", MetaStep, err)
		}
	}
	if v, ok := meta[MetaLoss]; ok {
		if out.Loss, err = strconv.ParseFloat(v, 64); err != nil {
			return out, fmt.Errorf("metadata %s: %w", MetaLoss, err)
		}
	}
	return out, nil
}
