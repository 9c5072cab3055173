package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planqa/planqa/pkg/embedders"
	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/retrieval"
)

// embedBatchSize is the number of chunks embedded and upserted per
// round trip.
const embedBatchSize = 64

// Summaries is the knowledge summary lifecycle the build needs.
type Summaries interface {
	Delete() error
	Generate(ctx context.Context) (*knowledge.Summary, error)
}

// Stats reports what a build produced.
type Stats struct {
	Documents int
	Chunks    int
	Duration  time.Duration
}

// Builder runs the index build pipeline.
type Builder struct {
	store     retrieval.Store
	embedder  embedders.Embedder
	summaries Summaries
	chunker   *Chunker
	logger    *slog.Logger
}

// NewBuilder creates an index builder.
func NewBuilder(store retrieval.Store, embedder embedders.Embedder, summaries Summaries, chunker *Chunker, logger *slog.Logger) *Builder {
	if chunker == nil {
		chunker = NewChunker(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:     store,
		embedder:  embedder,
		summaries: summaries,
		chunker:   chunker,
		logger:    logger,
	}
}

// Build rebuilds the index from the documents in dir. The knowledge
// summary is deleted before any index content changes and regenerated
// as the final step, so it always reflects the finished index. The
// collection is recreated, not merged into.
func (b *Builder) Build(ctx context.Context, dir string) (*Stats, error) {
	start := time.Now()

	if b.summaries != nil {
		if err := b.summaries.Delete(); err != nil {
			return nil, err
		}
	}

	chunks, documents, err := b.load(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks extracted from %s", dir)
	}
	b.logger.Info("Extracted chunks", "documents", documents, "chunks", len(chunks))

	if err := b.store.RecreateCollection(ctx, b.embedder.Dimension()); err != nil {
		return nil, err
	}

	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Text
		}

		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}

		if err := b.store.Upsert(ctx, batch, vectors); err != nil {
			return nil, err
		}

		b.logger.Info("Indexed chunks", "done", end, "total", len(chunks))
	}

	if b.summaries != nil {
		if _, err := b.summaries.Generate(ctx); err != nil {
			b.logger.Warn("Knowledge summary regeneration failed, fallback will be served", "error", err)
		}
	}

	return &Stats{
		Documents: documents,
		Chunks:    len(chunks),
		Duration:  time.Since(start),
	}, nil
}

// load gathers chunks from every supported file in dir: .jsonl files
// hold pre-extracted chunk records, .pdf files are extracted and
// chunked here.
func (b *Builder) load(ctx context.Context, dir string) ([]retrieval.Chunk, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read documents directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var chunks []retrieval.Chunk
	documents := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		path := filepath.Join(dir, name)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jsonl":
			records, err := ReadRecords(path)
			if err != nil {
				return nil, 0, err
			}
			for i := range records {
				records[i].ID = uuid.NewString()
			}
			chunks = append(chunks, records...)
			documents++
			b.logger.Info("Loaded chunk records", "file", name, "chunks", len(records))

		case ".pdf":
			extracted, err := b.loadPDF(ctx, path, name)
			if err != nil {
				return nil, 0, err
			}
			chunks = append(chunks, extracted...)
			documents++
			b.logger.Info("Extracted document", "file", name, "chunks", len(extracted))

		default:
			b.logger.Debug("Skipping unsupported file", "file", name)
		}
	}

	return chunks, documents, nil
}

func (b *Builder) loadPDF(ctx context.Context, path, name string) ([]retrieval.Chunk, error) {
	pages, err := ExtractPDF(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var chunks []retrieval.Chunk
	for _, page := range pages {
		// Paragraph index resets per page.
		for i, text := range b.chunker.ChunkBlocks(page.Blocks) {
			chunks = append(chunks, retrieval.Chunk{
				ID:          uuid.NewString(),
				Document:    name,
				Page:        page.Number,
				Paragraph:   i,
				Text:        text,
				ContentType: retrieval.ContentTypeText,
			})
		}
	}
	return chunks, nil
}
