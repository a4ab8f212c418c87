package services

import (
	"regexp"
	"strconv"
	"strings"
)

// TextChunk is a single chunker emission: trimmed content tagged with the
// page the content belongs to.
type TextChunk struct {
	Content string
	Page    int
}

// pageMarkerRe matches the markers extractors inject ahead of each page's
// text. The marker line itself is consumed, never emitted as content.
var pageMarkerRe = regexp.MustCompile(`^\s*--- PAGE (\d+) ---\s*$`)

// ChunkText splits extracted text into ordered, overlapping chunks.
//
// The text is scanned line by line into a buffer. A boundary is triggered by
// a page marker line, by a blank line while the buffer has grown past
// chunkSize, or by the buffer reaching chunkSize. On a boundary the trimmed
// buffer is emitted tagged with the current page, and the next buffer is
// seeded with the trailing ~overlap/5 words of the emitted chunk so context
// survives the cut. Only page markers advance the page counter, so pages are
// non-decreasing across the sequence. Whitespace-only buffers are dropped,
// as is a buffer holding nothing but the overlap seed.
func ChunkText(text string, chunkSize, overlap int) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}

	overlapWords := overlap / 5
	page := 1
	buf := ""
	seed := ""

	var chunks []TextChunk
	flush := func() {
		content := strings.TrimSpace(buf)
		if content == "" {
			buf = ""
			return
		}
		// Nothing appended since the last boundary: keep the seed for the
		// next real content instead of emitting duplicated words.
		if content == seed {
			return
		}
		chunks = append(chunks, TextChunk{Content: content, Page: page})
		seed = trailingWords(content, overlapWords)
		if seed == "" {
			buf = ""
			return
		}
		buf = seed + "\n"
	}

	for _, line := range strings.Split(text, "\n") {
		if m := pageMarkerRe.FindStringSubmatch(line); m != nil {
			flush()
			if n, err := strconv.Atoi(m[1]); err == nil && n > page {
				page = n
			}
			continue
		}
		if strings.TrimSpace(line) == "" && len(buf) > chunkSize {
			flush()
			continue
		}
		if len(buf) >= chunkSize {
			flush()
		}
		buf += line + "\n"
	}
	flush()

	return chunks
}

// trailingWords returns the last n whitespace-separated words of s.
func trailingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
