// Package serialization reads and writes float32 tensors in the SafeTensors
// format:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, tensor name → {dtype, shape, data_offsets}, plus __metadata__]
//	[tensor data: raw little-endian bytes, sorted by name]
//
// Files written here carry a SHA-256 of the data section in their metadata
// ("sha256"); the reader verifies it when present.
//
// Example usage:
//
//	meta := map[string]string{serialization.MetaRunID: id}
//	if err := serialization.WriteSafeTensors("decoder.safetensors", dec.StateDict(), meta); err != nil {
//	    return err
//	}
//
//	tensors, meta, err := serialization.ReadSafeTensors("decoder.safetensors")
package serialization
