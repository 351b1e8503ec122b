package decoder

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/adain/internal/serialization"
)

// Save writes the decoder weights and meta to a SafeTensors file.
func (d *Decoder) Save(path string, meta serialization.CheckpointMeta) error {
	if err := serialization.WriteSafeTensors(path, d.StateDict(), meta.Map()); err != nil {
		return fmt.Errorf("decoder: save %s: %w", path, err)
	}
	return nil
}

// Load restores a decoder saved with Save.
func Load(path string) (*Decoder, serialization.CheckpointMeta, error) {
	tensors, rawMeta, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, serialization.CheckpointMeta{}, fmt.Errorf("decoder: load: %w", err)
	}
	meta, err := serialization.ParseCheckpointMeta(rawMeta)
	if err != nil {
		return nil, serialization.CheckpointMeta{}, fmt.Errorf("decoder: load %s: %w", path, err)
	}

	// Initial values are overwritten; the seed does not matter.
	d := New(rand.New(rand.NewSource(0)))
	if err := d.LoadStateDict(tensors); err != nil {
		return nil, serialization.CheckpointMeta{}, fmt.Errorf("decoder: load %s: %w", path, err)
	}
	return d, meta, nil
}
