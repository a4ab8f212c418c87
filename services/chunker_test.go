package services

import (
	"fmt"
	"strings"
	"testing"
)

func TestChunkText_EmptyInput(t *testing.T) {
	if got := ChunkText("", 1000, 200); got != nil {
		t.Fatalf("expected nil for empty input, got %d chunks", len(got))
	}
	if got := ChunkText("  \n\t\n  ", 1000, 200); got != nil {
		t.Fatalf("expected nil for whitespace input, got %d chunks", len(got))
	}
}

func TestChunkText_SmallInputSingleChunk(t *testing.T) {
	chunks := ChunkText("hello world", 1000, 200)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "hello world" {
		t.Fatalf("unexpected content %q", chunks[0].Content)
	}
	if chunks[0].Page != 1 {
		t.Fatalf("expected page 1, got %d", chunks[0].Page)
	}
}

func TestChunkText_EveryWordSurvives(t *testing.T) {
	// Unique words so presence in the output is unambiguous.
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, fmt.Sprintf("word%03d", i))
	}
	text := strings.Join(lines, "\n")

	chunks := ChunkText(text, 80, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var all strings.Builder
	for _, c := range chunks {
		all.WriteString(c.Content)
		all.WriteString("\n")
	}
	joined := all.String()

	for i := 0; i < 200; i++ {
		w := fmt.Sprintf("word%03d", i)
		if !strings.Contains(joined, w) {
			t.Fatalf("input word %q missing from chunk output", w)
		}
	}
}

func TestChunkText_ChunksOverlap(t *testing.T) {
	long := strings.Repeat("alpha beta gamma delta epsilon ", 4) // well past chunkSize
	text := long + "\nzeta"

	chunks := ChunkText(text, 50, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	// overlap/5 trailing words of one chunk seed the next.
	words := strings.Fields(chunks[0].Content)
	seed := strings.Join(words[len(words)-4:], " ")
	if !strings.HasPrefix(chunks[1].Content, seed) {
		t.Fatalf("chunk 2 %q does not start with seed %q", chunks[1].Content, seed)
	}
}

func TestChunkText_ZeroOverlap(t *testing.T) {
	long := strings.Repeat("alpha beta gamma delta epsilon ", 4)
	text := long + "\nzeta"

	chunks := ChunkText(text, 50, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != "zeta" {
		t.Fatalf("expected second chunk without seed, got %q", chunks[1].Content)
	}
}

func TestChunkText_BlankLineBoundary(t *testing.T) {
	// The blank line forces a boundary because the buffer already exceeds
	// chunkSize; the following paragraph starts a fresh chunk.
	text := strings.Repeat("a", 20) + "\n\nsecond paragraph"

	chunks := ChunkText(text, 10, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != strings.Repeat("a", 20) {
		t.Fatalf("unexpected first chunk %q", chunks[0].Content)
	}
	if chunks[1].Content != "second paragraph" {
		t.Fatalf("unexpected second chunk %q", chunks[1].Content)
	}
}

func TestChunkText_PageTagging(t *testing.T) {
	text := "--- PAGE 1 ---\nfirst page text\n--- PAGE 2 ---\nsecond page text"

	chunks := ChunkText(text, 1000, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[0].Content != "first page text" {
		t.Fatalf("unexpected first chunk %+v", chunks[0])
	}
	if chunks[1].Page != 2 || chunks[1].Content != "second page text" {
		t.Fatalf("unexpected second chunk %+v", chunks[1])
	}
}

func TestChunkText_PagesNeverDecrease(t *testing.T) {
	// A marker with a lower number than the current page must not rewind.
	text := "--- PAGE 3 ---\nlate text\n--- PAGE 1 ---\nstray text"

	chunks := ChunkText(text, 1000, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 3 {
		t.Fatalf("expected page 3, got %d", chunks[0].Page)
	}
	if chunks[1].Page != 3 {
		t.Fatalf("page rewound to %d", chunks[1].Page)
	}

	prev := 0
	for _, c := range chunks {
		if c.Page < prev {
			t.Fatalf("page sequence decreased: %d after %d", c.Page, prev)
		}
		prev = c.Page
	}
}

func TestChunkText_MarkersNeverEmitted(t *testing.T) {
	text := "--- PAGE 1 ---\nsome text\n--- PAGE 2 ---\nmore text\n--- PAGE 3 ---\nlast text"

	for _, c := range ChunkText(text, 30, 10) {
		if strings.Contains(c.Content, "--- PAGE") {
			t.Fatalf("marker leaked into chunk content: %q", c.Content)
		}
	}
}

func TestChunkText_SeedAloneNotEmitted(t *testing.T) {
	// After the marker flush only the overlap seed remains in the buffer;
	// the trailing flush must not emit it as a chunk of its own.
	long := strings.Repeat("alpha beta gamma delta epsilon ", 4)
	text := long + "\n--- PAGE 2 ---"

	chunks := ChunkText(text, 50, 20)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != strings.TrimSpace(long) {
		t.Fatalf("unexpected chunk content %q", chunks[0].Content)
	}
}

func TestTrailingWords(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"one two three four", 2, "three four"},
		{"one two", 5, "one two"},
		{"one two", 0, ""},
		{"", 3, ""},
	}
	for _, tc := range cases {
		if got := trailingWords(tc.in, tc.n); got != tc.want {
			t.Errorf("trailingWords(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
