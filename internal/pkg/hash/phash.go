package hash

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// HashType represents the type of perceptual hash.
type HashType int

const (
	// PHash uses DCT-based perceptual hash (most accurate).
	PHash HashType = iota
	// AHash uses average hash (fastest).
	AHash
	// DHash uses difference hash (good balance).
	DHash
)

// ImageHash represents a computed image hash.
type ImageHash struct {
	Hash     uint64
	HashType HashType
	Width    int
	Height   int
}

// PerceptualHasher computes 64-bit perceptual hashes of frames.
type PerceptualHasher struct {
	hashType HashType
}

// NewPerceptualHasher creates a hasher for the given hash type.
func NewPerceptualHasher(hashType HashType) *PerceptualHasher {
	return &PerceptualHasher{hashType: hashType}
}

// Compute hashes img with the hasher's type.
func (ph *PerceptualHasher) Compute(img image.Image) (*ImageHash, error) {
	var (
		h   *goimagehash.ImageHash
		err error
	)
	switch ph.hashType {
	case AHash:
		h, err = goimagehash.AverageHash(img)
	case DHash:
		h, err = goimagehash.DifferenceHash(img)
	default:
		h, err = goimagehash.PerceptionHash(img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s: %w", ph.hashType, err)
	}
	return &ImageHash{
		Hash:     h.GetHash(),
		HashType: ph.hashType,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}, nil
}

// HammingDistance calculates the Hamming distance between two hashes.
// Returns the number of different bits (0 = identical images).
func HammingDistance(hash1, hash2 uint64) int {
	return bits.OnesCount64(hash1 ^ hash2)
}

// IsSimilar checks if two hashes are similar within a threshold.
// Typical thresholds:
//   - 0: Identical
//   - 1-5: Very similar (likely same frame re-encoded)
//   - 6-10: Somewhat similar
//   - 11+: Different images
func IsSimilar(h1, h2 *ImageHash, threshold int) bool {
	return HammingDistance(h1.Hash, h2.Hash) <= threshold
}

// String returns a hex string representation of the hash.
func (h *ImageHash) String() string {
	return fmt.Sprintf("%016x", h.Hash)
}

func (t HashType) String() string {
	switch t {
	case PHash:
		return "pHash"
	case AHash:
		return "aHash"
	case DHash:
		return "dHash"
	default:
		return "unknown"
	}
}

// ParseHashType maps a config name to a HashType; unknown names select PHash.
func ParseHashType(s string) HashType {
	switch s {
	case "ahash", "aHash":
		return AHash
	case "dhash", "dHash":
		return DHash
	default:
		return PHash
	}
}
