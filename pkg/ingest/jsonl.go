package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/planqa/planqa/pkg/retrieval"
)

// Record is one pre-extracted chunk in a JSONL file. ContentType
// defaults to text; image-ocr marks OCR-recovered text.
type Record struct {
	Document    string `json:"document"`
	Title       string `json:"title,omitempty"`
	Page        int    `json:"page"`
	Paragraph   int    `json:"paragraph"`
	Text        string `json:"text"`
	ContentType string `json:"content_type,omitempty"`
}

// maxRecordBytes bounds a single JSONL line.
const maxRecordBytes = 1 << 20

// ReadRecords reads pre-extracted chunk records from a JSONL file.
// Blank lines are skipped, a malformed line aborts with its line
// number.
func ReadRecords(path string) ([]retrieval.Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer file.Close()

	var chunks []retrieval.Chunk
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var record Record
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("%s:%d: invalid record: %w", path, line, err)
		}
		if record.Document == "" || record.Text == "" {
			return nil, fmt.Errorf("%s:%d: record needs document and text", path, line)
		}

		contentType := record.ContentType
		switch contentType {
		case "":
			contentType = retrieval.ContentTypeText
		case retrieval.ContentTypeText, retrieval.ContentTypeImageOCR:
		default:
			return nil, fmt.Errorf("%s:%d: unknown content_type %q", path, line, contentType)
		}

		chunks = append(chunks, retrieval.Chunk{
			Document:    record.Document,
			Title:       record.Title,
			Page:        record.Page,
			Paragraph:   record.Paragraph,
			Text:        record.Text,
			ContentType: contentType,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}

	return chunks, nil
}
