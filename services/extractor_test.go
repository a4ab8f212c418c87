package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractorFor_ContentTypes(t *testing.T) {
	if ext, err := ExtractorFor("application/pdf"); err != nil {
		t.Fatalf("pdf: %v", err)
	} else if _, ok := ext.(*PDFExtractor); !ok {
		t.Fatalf("pdf: got %T", ext)
	}

	if ext, err := ExtractorFor("text/html; charset=utf-8"); err != nil {
		t.Fatalf("html: %v", err)
	} else if _, ok := ext.(*HTMLExtractor); !ok {
		t.Fatalf("html: got %T", ext)
	}

	for _, ct := range []string{"text/plain", "text/plain; charset=utf-8", ""} {
		if ext, err := ExtractorFor(ct); err != nil {
			t.Fatalf("%q: %v", ct, err)
		} else if _, ok := ext.(*PlainTextExtractor); !ok {
			t.Fatalf("%q: got %T", ct, ext)
		}
	}

	if _, err := ExtractorFor("application/zip"); !IsValidationError(err) {
		t.Fatalf("zip: expected validation error, got %v", err)
	}
}

func TestPlainTextExtractor_PageBreaks(t *testing.T) {
	e := &PlainTextExtractor{}
	result, err := e.Extract(context.Background(), []byte("one\ftwo\f\fthree"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Pages != 3 {
		t.Fatalf("expected 3 pages (empty segment skipped), got %d", result.Pages)
	}

	// The markers drive page tagging downstream.
	chunks := ChunkText(result.Text, 1000, 0)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantPages := []int{1, 2, 3}
	wantContent := []string{"one", "two", "three"}
	for i, ch := range chunks {
		if ch.Page != wantPages[i] || ch.Content != wantContent[i] {
			t.Fatalf("chunk %d = %+v, want page %d content %q", i, ch, wantPages[i], wantContent[i])
		}
	}
}

func TestPlainTextExtractor_EmptyInput(t *testing.T) {
	e := &PlainTextExtractor{}
	for _, input := range []string{"", "   \n ", "\f\f"} {
		_, err := e.Extract(context.Background(), []byte(input))
		if !errors.Is(err, ErrEmptyDocument) {
			t.Fatalf("input %q: expected empty-document error, got %v", input, err)
		}
	}
}

func TestHTMLExtractor_StripsChrome(t *testing.T) {
	html := `<html>
<head>
  <title>Installation Guide</title>
  <script>trackVisit();</script>
  <style>body { color: red; }</style>
</head>
<body>
  <nav>Home | About | Contact</nav>
  <h1>Getting Started</h1>
  <p>Mount the bracket on the wall.</p>
  <ul><li>Use four screws.</li></ul>
  <footer>Copyright 2024</footer>
</body>
</html>`

	e := &HTMLExtractor{}
	result, err := e.Extract(context.Background(), []byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Title != "Installation Guide" {
		t.Fatalf("title = %q", result.Title)
	}
	if result.Pages != 1 {
		t.Fatalf("pages = %d", result.Pages)
	}
	for _, want := range []string{"Getting Started", "Mount the bracket", "Use four screws"} {
		if !strings.Contains(result.Text, want) {
			t.Fatalf("extracted text missing %q:\n%s", want, result.Text)
		}
	}
	for _, stripped := range []string{"trackVisit", "color: red", "Home | About", "Copyright"} {
		if strings.Contains(result.Text, stripped) {
			t.Fatalf("extracted text still contains %q:\n%s", stripped, result.Text)
		}
	}
}

func TestHTMLExtractor_FallsBackToBodyText(t *testing.T) {
	e := &HTMLExtractor{}
	result, err := e.Extract(context.Background(), []byte("<html><body><div>bare text in a div</div></body></html>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Text, "bare text in a div") {
		t.Fatalf("body fallback missing text:\n%s", result.Text)
	}
}

func TestHTMLExtractor_EmptyDocument(t *testing.T) {
	e := &HTMLExtractor{}
	_, err := e.Extract(context.Background(), []byte("<html><body>  </body></html>"))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected empty-document error, got %v", err)
	}
}

func TestPDFExtractor_RejectsGarbage(t *testing.T) {
	e := &PDFExtractor{}
	if _, err := e.Extract(context.Background(), []byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for non-PDF input")
	}
}
