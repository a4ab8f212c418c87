package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressText_SmallPayloadStaysRaw(t *testing.T) {
	text := "a short note"
	compressed, algorithm, err := CompressText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if algorithm != CompressionNone {
		t.Fatalf("expected no compression for small payload, got %s", algorithm)
	}
	if string(compressed) != text {
		t.Fatalf("small payload was altered: %q", compressed)
	}
}

func TestCompressText_LargePayloadRoundTrips(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
	compressed, algorithm, err := CompressText(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if algorithm != CompressionGzip {
		t.Fatalf("expected gzip for large payload, got %s", algorithm)
	}
	if len(compressed) >= len(text) {
		t.Fatalf("compression did not shrink repetitive text: %d >= %d", len(compressed), len(text))
	}

	restored, err := DecompressText(compressed, algorithm)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if restored != text {
		t.Fatal("round trip lost data")
	}
}

func TestCompressData_AllAlgorithmsRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("payload ", 100))
	for _, algorithm := range []CompressionAlgorithm{CompressionNone, CompressionGzip, CompressionZlib} {
		compressed, err := CompressData(data, algorithm)
		if err != nil {
			t.Fatalf("%s: compress: %v", algorithm, err)
		}
		restored, err := DecompressData(compressed, algorithm)
		if err != nil {
			t.Fatalf("%s: decompress: %v", algorithm, err)
		}
		if !bytes.Equal(restored, data) {
			t.Fatalf("%s: round trip lost data", algorithm)
		}
	}
}

func TestCompressData_UnknownAlgorithm(t *testing.T) {
	if _, err := CompressData([]byte("x"), "brotli"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if _, err := DecompressData([]byte("x"), "brotli"); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestCompressData_EmptyPassthrough(t *testing.T) {
	out, err := CompressData(nil, CompressionGzip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("empty input produced output: %v", out)
	}
}
