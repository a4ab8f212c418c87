package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"docqa-platform/internal/logger"
)

// ExtractionResult is the output of text extraction: the text carries
// "--- PAGE N ---" markers ahead of each page so the chunker can tag chunks
// with their page of origin.
type ExtractionResult struct {
	Text  string
	Pages int
	Title string // best-effort, empty when the format has no title metadata
}

// TextExtractor converts an uploaded payload into marker-annotated text.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte) (*ExtractionResult, error)
}

// ExtractorFor picks the extractor for an upload's content type.
func ExtractorFor(contentType string) (TextExtractor, error) {
	switch {
	case strings.Contains(contentType, "pdf"):
		return &PDFExtractor{}, nil
	case strings.Contains(contentType, "html"):
		return &HTMLExtractor{}, nil
	case strings.Contains(contentType, "text/plain"), contentType == "":
		return &PlainTextExtractor{}, nil
	default:
		return nil, NewDomainError(ErrorTypeValidation, fmt.Sprintf("unsupported content type: %s", contentType), nil)
	}
}

// PDFExtractor pulls plain text out of PDF files page by page.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, content []byte) (*ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract text from page", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(fmt.Sprintf("\n\n--- PAGE %d ---\n", i))
		textBuilder.WriteString(text)
	}

	extracted := textBuilder.String()
	if strings.TrimSpace(strippedOfMarkers(extracted)) == "" {
		return nil, ErrEmptyDocument
	}

	return &ExtractionResult{Text: extracted, Pages: pages}, nil
}

// HTMLExtractor extracts readable text from HTML documents. Script, style
// and navigation chrome is stripped; block-level elements become lines so
// the chunker sees the document's structure.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(ctx context.Context, content []byte) (*ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	var textBuilder strings.Builder
	textBuilder.WriteString("\n\n--- PAGE 1 ---\n")

	blocks := 0
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td, th").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
		blocks++
	})

	// Pages without block markup still count: fall back to the whole body.
	if blocks == 0 {
		body := strings.TrimSpace(doc.Find("body").Text())
		if body == "" {
			return nil, ErrEmptyDocument
		}
		textBuilder.WriteString(body)
		textBuilder.WriteString("\n")
	}

	return &ExtractionResult{Text: textBuilder.String(), Pages: 1, Title: title}, nil
}

// PlainTextExtractor passes text through, treating form feeds as page breaks.
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) Extract(ctx context.Context, content []byte) (*ExtractionResult, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	segments := strings.Split(text, "\f")

	var textBuilder strings.Builder
	pages := 0
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		pages++
		textBuilder.WriteString(fmt.Sprintf("\n\n--- PAGE %d ---\n", pages))
		textBuilder.WriteString(segment)
	}
	if pages == 0 {
		return nil, ErrEmptyDocument
	}

	return &ExtractionResult{Text: textBuilder.String(), Pages: pages}, nil
}

// strippedOfMarkers removes page marker lines so emptiness checks look at
// real content only.
func strippedOfMarkers(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if pageMarkerRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
