package checksum

import (
	"bytes"
	"testing"
)

func TestSum64Deterministic(t *testing.T) {
	data := []byte(`{"version":12,"size":3}`)
	if Sum64(data) != Sum64(data) {
		t.Fatal("Sum64 not deterministic")
	}
	if Sum64(data) == Sum64([]byte(`{"version":13,"size":3}`)) {
		t.Error("distinct payloads produced identical hashes")
	}
}

func TestHexWidth(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("a"), []byte("longer payload for hashing")} {
		h := Hex(data)
		if len(h) != 16 {
			t.Errorf("Hex(%q) = %q, want 16 hex chars", data, h)
		}
	}
}

func TestAppendVerifyRoundTrip(t *testing.T) {
	payload := []byte("checkpoint part payload")
	framed := Append(nil, payload)
	if len(framed) != Size {
		t.Fatalf("trailer length = %d, want %d", len(framed), Size)
	}
	if !Verify(payload, framed) {
		t.Error("Verify rejected a valid trailer")
	}
}

func TestVerifyRejectsCorruption(t *testing.T) {
	payload := []byte("checkpoint part payload")
	trailer := Append(nil, payload)

	// Flip one payload byte.
	mutated := bytes.Clone(payload)
	mutated[0] ^= 0x01
	if Verify(mutated, trailer) {
		t.Error("Verify accepted corrupted payload")
	}

	// Flip one trailer byte.
	badTrailer := bytes.Clone(trailer)
	badTrailer[3] ^= 0x80
	if Verify(payload, badTrailer) {
		t.Error("Verify accepted corrupted trailer")
	}
}

func TestVerifyShortTrailer(t *testing.T) {
	if Verify([]byte("x"), []byte{1, 2, 3}) {
		t.Error("Verify accepted short trailer")
	}
}
