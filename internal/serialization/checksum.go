package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeChecksum computes SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ChecksumHex returns the hex-encoded SHA-256 of data, the form stored in
// file metadata.
func ChecksumHex(data []byte) string {
	sum := ComputeChecksum(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum compares the checksum of data against a hex-encoded
// stored value. Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(data []byte, stored string) error {
	want, err := hex.DecodeString(stored)
	if err != nil || len(want) != sha256.Size {
		return fmt.Errorf("%w: malformed stored checksum %q", ErrChecksumMismatch, stored)
	}
	if ComputeChecksum(data) != [32]byte(want) {
		return ErrChecksumMismatch
	}
	return nil
}
