package hash

import (
	"image"
	"image/color"
	"testing"
)

// createGradientImage creates a diagonal gradient test image.
func createGradientImage(width, height int, invert bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := uint8((x + y) * 255 / (width + height))
			if invert {
				gray = 255 - gray
			}
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

func TestPerceptualHasher_Compute(t *testing.T) {
	tests := []struct {
		name     string
		hashType HashType
	}{
		{"phash", PHash},
		{"ahash", AHash},
		{"dhash", DHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ph := NewPerceptualHasher(tt.hashType)
			hash, err := ph.Compute(createGradientImage(100, 80, false))
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if hash.HashType != tt.hashType {
				t.Errorf("Expected %s, got %s", tt.hashType, hash.HashType)
			}
			if hash.Width != 100 || hash.Height != 80 {
				t.Errorf("Expected 100x80, got %dx%d", hash.Width, hash.Height)
			}
		})
	}
}

func TestParseHashType(t *testing.T) {
	tests := map[string]HashType{
		"phash": PHash,
		"ahash": AHash,
		"dHash": DHash,
		"":      PHash,
		"bogus": PHash,
	}
	for in, want := range tests {
		if got := ParseHashType(in); got != want {
			t.Errorf("ParseHashType(%q) = %s; want %s", in, got, want)
		}
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected int
	}{
		{
			name:     "identical",
			hash1:    0xFFFFFFFFFFFFFFFF,
			hash2:    0xFFFFFFFFFFFFFFFF,
			expected: 0,
		},
		{
			name:     "one bit different",
			hash1:    0xFFFFFFFFFFFFFFFE,
			hash2:    0xFFFFFFFFFFFFFFFF,
			expected: 1,
		},
		{
			name:     "completely different",
			hash1:    0x0000000000000000,
			hash2:    0xFFFFFFFFFFFFFFFF,
			expected: 64,
		},
		{
			name:     "half different",
			hash1:    0x00000000FFFFFFFF,
			hash2:    0x0000000000000000,
			expected: 32,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HammingDistance(tt.hash1, tt.hash2)
			if result != tt.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d", tt.hash1, tt.hash2, result, tt.expected)
			}
		})
	}
}

func TestIsSimilar(t *testing.T) {
	h1 := &ImageHash{Hash: 0xFFFFFFFFFFFFFFFF}
	h2 := &ImageHash{Hash: 0xFFFFFFFFFFFFFFF0} // 4 bits different

	if !IsSimilar(h1, h2, 5) {
		t.Error("Expected images to be similar with threshold 5")
	}
	if IsSimilar(h1, h2, 3) {
		t.Error("Expected images to NOT be similar with threshold 3")
	}
}

func TestImageHash_String(t *testing.T) {
	h := &ImageHash{Hash: 0xDEADBEEF12345678}
	expected := "deadbeef12345678"
	if h.String() != expected {
		t.Errorf("String() = %s; want %s", h.String(), expected)
	}
}

func TestSameImageIdenticalHash(t *testing.T) {
	ph := NewPerceptualHasher(PHash)
	img := createGradientImage(100, 100, false)

	hash1, _ := ph.Compute(img)
	hash2, _ := ph.Compute(img)

	if hash1.Hash != hash2.Hash {
		t.Error("Same image should produce identical hash")
	}
}

func TestDifferentImagesProduceDifferentHashes(t *testing.T) {
	ph := NewPerceptualHasher(PHash)

	h1, _ := ph.Compute(createGradientImage(100, 100, false))
	h2, _ := ph.Compute(createGradientImage(100, 100, true))

	if h1.Hash == h2.Hash {
		t.Error("Different images should produce different hashes")
	}
}

func TestSha256Hex(t *testing.T) {
	got := Sha256Hex([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sha256Hex(abc) = %s; want %s", got, want)
	}
}

func TestUint64Bytes(t *testing.T) {
	b := Uint64Bytes(0x0102030405060708)
	if len(b) != 8 || b[0] != 1 || b[7] != 8 {
		t.Errorf("Expected big-endian bytes, got %v", b)
	}
}

func BenchmarkComputePHash(b *testing.B) {
	ph := NewPerceptualHasher(PHash)
	img := createGradientImage(224, 224, false)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ph.Compute(img)
	}
}

func BenchmarkHammingDistance(b *testing.B) {
	h1 := uint64(0xDEADBEEF12345678)
	h2 := uint64(0xCAFEBABE87654321)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HammingDistance(h1, h2)
	}
}
