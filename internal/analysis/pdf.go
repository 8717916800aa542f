package analysis

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text from PDF documents page by page.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Name() string {
	return "pdf"
}

func (e *PDFExtractor) CanExtract(mediaType string) bool {
	return mediaType == "application/pdf"
}

// Extract walks the page tree and concatenates the text of every page.
// The pdf library panics on malformed files; that is converted to an
// error here so callers see a failed extraction, not a dead worker.
func (e *PDFExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64, progress ProgressFunc) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reading pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}

	var sb strings.Builder
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")

		if progress != nil {
			progress(float64(i) * 100 / float64(total))
		}
	}

	text = sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("document contains no extractable text")
	}
	return text, nil
}
