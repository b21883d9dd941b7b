package clarity

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("console.log(1)"))
	b := HashContent([]byte("console.log(1)"))
	c := HashContent([]byte("console.log(2)"))

	if a != b {
		t.Errorf("Expected identical hashes, got %s and %s", a, b)
	}
	if a == c {
		t.Errorf("Expected different hashes for different content")
	}
	// sha256 -> 32 bytes -> 43 chars base64 (无填充)
	if len(a) != 43 {
		t.Errorf("Expected 43 chars, got %d", len(a))
	}
	if !SameContent([]byte("x"), []byte("x")) || SameContent([]byte("x"), []byte("y")) {
		t.Errorf("SameContent mismatch")
	}
}

func TestGzipContent(t *testing.T) {
	data := bytes.Repeat([]byte("clarity "), 100)
	gz, err := GzipContent(data)
	if err != nil {
		t.Fatalf("GzipContent failed: %v", err)
	}
	if len(gz) >= len(data) {
		t.Errorf("Expected compressed output to be smaller")
	}

	zr, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Round trip mismatch")
	}
}
