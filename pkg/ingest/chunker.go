// Package ingest builds the regulation index: it extracts text from
// source documents, merges it into retrieval-sized chunks, embeds the
// chunks, and loads them into the vector store.
package ingest

import (
	"strings"

	"github.com/planqa/planqa/pkg/utils"
)

// Chunking defaults, in tokens. Larger chunks keep complete rule
// descriptions together, overlap preserves context across boundaries.
const (
	defaultTargetChunkTokens = 1024
	defaultMaxChunkTokens    = 1536
	defaultOverlapTokens     = 256
	defaultMinChunkTokens    = 256

	// minBlockLength filters noise blocks, in characters.
	minBlockLength = 20
)

// Chunker merges extracted text blocks into chunks sized for embedding
// and retrieval.
type Chunker struct {
	counter *utils.TokenCounter

	targetTokens  int
	maxTokens     int
	overlapTokens int
	minTokens     int
}

// NewChunker creates a chunker. counter may be nil, in which case token
// counts are approximated from character length.
func NewChunker(counter *utils.TokenCounter) *Chunker {
	return &Chunker{
		counter:       counter,
		targetTokens:  defaultTargetChunkTokens,
		maxTokens:     defaultMaxChunkTokens,
		overlapTokens: defaultOverlapTokens,
		minTokens:     defaultMinChunkTokens,
	}
}

// ChunkBlocks turns the text blocks of one page into chunks: adjacent
// blocks are merged up to the target size, and anything still over the
// maximum is split with a sliding window.
func (c *Chunker) ChunkBlocks(blocks []string) []string {
	merged := c.mergeBlocks(blocks)

	var chunks []string
	for _, chunk := range merged {
		if c.counter.Count(chunk) <= c.maxTokens {
			chunks = append(chunks, chunk)
			continue
		}
		chunks = append(chunks, c.splitLong(chunk)...)
	}
	return chunks
}

// mergeBlocks accumulates blocks until the target size is reached, then
// starts the next chunk with an overlap tail from the previous one. A
// trailing chunk below the minimum size is folded into its predecessor.
func (c *Chunker) mergeBlocks(blocks []string) []string {
	var filtered []string
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if len(block) < minBlockLength {
			continue
		}
		filtered = append(filtered, block)
	}
	if len(filtered) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentTokens := 0

	for _, block := range filtered {
		blockTokens := c.counter.Count(block)

		if currentTokens > 0 && currentTokens+blockTokens > c.targetTokens {
			chunk := strings.Join(current, " ")
			chunks = append(chunks, chunk)

			overlap := c.counter.Tail(chunk, c.overlapTokens)
			if overlap != "" {
				current = []string{overlap, block}
				currentTokens = c.counter.Count(overlap) + blockTokens
			} else {
				current = []string{block}
				currentTokens = blockTokens
			}
			continue
		}

		current = append(current, block)
		currentTokens += blockTokens
	}

	if len(current) > 0 {
		chunk := strings.Join(current, " ")
		if len(chunks) == 0 || c.counter.Count(chunk) >= c.minTokens {
			chunks = append(chunks, chunk)
		} else {
			chunks[len(chunks)-1] = chunks[len(chunks)-1] + " " + chunk
		}
	}

	return chunks
}

// splitLong splits an oversized chunk into overlapping windows,
// preferring sentence boundaries in the second half of a window.
func (c *Chunker) splitLong(text string) []string {
	windowChars := c.targetTokens * 4
	overlapChars := c.overlapTokens * 4

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + windowChars
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]

		if end < len(text) {
			if cut := strings.LastIndex(window, ". "); cut > len(window)/2 {
				window = window[:cut+1]
			}
		}

		if trimmed := strings.TrimSpace(window); trimmed != "" {
			chunks = append(chunks, trimmed)
		}

		step := len(window) - overlapChars
		if step < 1 {
			step = len(window)
		}
		start += step
	}
	return chunks
}
