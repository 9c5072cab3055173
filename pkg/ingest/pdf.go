package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page holds the text blocks extracted from one PDF page.
type Page struct {
	Number int
	Blocks []string
}

// ExtractPDF extracts per-page text blocks from a PDF file. Pages that
// fail to extract are skipped rather than aborting the document.
func ExtractPDF(ctx context.Context, path string) ([]Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var pages []Page
	total := reader.NumPage()
	for num := 1; num <= total; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		blocks := SplitBlocks(text)
		if len(blocks) == 0 {
			continue
		}
		pages = append(pages, Page{Number: num, Blocks: blocks})
	}

	return pages, nil
}

// SplitBlocks splits extracted page text into paragraph-like blocks on
// blank lines. Pages without blank-line structure yield a single block.
func SplitBlocks(text string) []string {
	var blocks []string
	for _, part := range strings.Split(text, "\n\n") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		blocks = append(blocks, strings.Join(lines, " "))
	}
	return blocks
}
