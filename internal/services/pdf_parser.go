package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// RubricPDFParser extracts text from rubric and guidance PDFs for ingestion
// into the rubric knowledge base.
type RubricPDFParser interface {
	ExtractText(filePath string) (*RubricDocument, error)
}

type RubricDocument struct {
	Text      string
	PageCount int
}

type rubricPDFParser struct{}

func NewRubricPDFParser() RubricPDFParser {
	return &rubricPDFParser{}
}

// ExtractText implements RubricPDFParser. Pages that fail to decode are
// skipped; the document only fails when no page yielded text.
func (p *rubricPDFParser) ExtractText(filePath string) (*RubricDocument, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var builder strings.Builder
	pageCount := r.NumPage()

	for pageIndex := 1; pageIndex <= pageCount; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		builder.WriteString(text)
		builder.WriteString("\n\n")
	}

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content found in PDF")
	}

	return &RubricDocument{
		Text:      text,
		PageCount: pageCount,
	}, nil
}
