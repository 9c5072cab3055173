// Package retrieval provides semantic search over the regulation corpus
// stored in Qdrant.
package retrieval

import (
	"context"
	"fmt"
)

// Chunk content types. Text is the default; image-ocr marks text
// recovered from drawings or figures by OCR.
const (
	ContentTypeText     = "text"
	ContentTypeImageOCR = "image-ocr"
)

// Chunk is a regulation text fragment as stored in the vector database.
type Chunk struct {
	ID          string `json:"id"`
	Document    string `json:"document"`
	Title       string `json:"title"`
	Page        int    `json:"page"`
	Paragraph   int    `json:"paragraph"`
	Text        string `json:"text"`
	ContentType string `json:"content_type"`
}

// Result is a scored retrieval hit.
type Result struct {
	ID          string  `json:"id"`
	Document    string  `json:"document"`
	Title       string  `json:"title"`
	Page        int     `json:"page"`
	Paragraph   int     `json:"paragraph"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
	ContentType string  `json:"content_type"`
}

// Store abstracts the vector database operations the service needs.
type Store interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Result, error)
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	EnsureCollection(ctx context.Context, dimension int) error
	RecreateCollection(ctx context.Context, dimension int) error
	CollectionExists(ctx context.Context) (bool, error)
	Sample(ctx context.Context, limit int) ([]Chunk, error)
	Count(ctx context.Context) (uint64, error)
	Close() error
}

// UnavailableError signals that the vector database could not be reached
// after retries.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("vector database unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
