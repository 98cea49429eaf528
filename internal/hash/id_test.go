package hash

import "testing"

func TestID_Deterministic(t *testing.T) {
	if ID("chunk-0") != ID("chunk-0") {
		t.Fatal("ID must be deterministic for the same input")
	}
	if ID("chunk-0") == ID("chunk-1") {
		t.Fatal("ID collided for distinct inputs")
	}
}

func TestDigest_Deterministic(t *testing.T) {
	a := []byte("frame payload bytes")
	b := append([]byte(nil), a...)

	if Digest(a) != Digest(b) {
		t.Fatal("Digest must be deterministic for equal content")
	}
	if Digest(a) == Digest(append(a, 0)) {
		t.Fatal("Digest did not change for different content")
	}
}
