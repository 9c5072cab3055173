// Package knowledge maintains the corpus summary artifact served with
// no-answer responses. The artifact is deleted at the start of every
// index rebuild and regenerated as the final indexing step, so it is
// never stale relative to the index. Serving never fails: while the
// artifact is absent a hard-coded fallback is returned.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/planqa/planqa/pkg/config"
	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/retrieval"
)

// Summary is the persisted corpus overview.
type Summary struct {
	Overview           string   `json:"overview"`
	Topics             []string `json:"topics"`
	SuggestedQuestions []string `json:"suggested_questions"`
	GeneratedAt        string   `json:"generated_at"`
	ChunkCount         int      `json:"chunk_count,omitempty"`
}

// Fallback is served while no generated artifact exists. It includes
// drawing-oriented questions so no-answer responses still point users
// at the drawing analysis capability.
func Fallback() *Summary {
	return &Summary{
		Overview: "This knowledge base covers building regulations and planning guidance, " +
			"including permitted development rules, extension limits, building heights and " +
			"structural requirements. You can also upload a building drawing and ask " +
			"questions about it.",
		Topics: []string{
			"permitted development",
			"extensions",
			"building heights",
			"planning permission",
			"structural requirements",
		},
		SuggestedQuestions: []string{
			"What are the permitted development rules for rear extensions?",
			"How tall can I build without planning permission?",
			"What is the plot area of my drawing?",
			"Does my extension comply with the regulations?",
			"Describe my building drawing",
		},
	}
}

const generationPrompt = `You are given sample excerpts from a building regulations knowledge base. Summarize what the knowledge base covers.

Excerpts:
%s

Respond with JSON:
{"overview": "two or three sentences describing the covered material", "topics": ["topic"], "suggested_questions": ["question a user could ask"]}

Include at least three suggested questions that involve the user's own building drawing (for example asking about its dimensions or whether it complies).`

// Service owns the summary artifact lifecycle.
type Service struct {
	path      string
	store     retrieval.Store
	provider  llms.Provider
	sampleMin int
	sampleMax int
	maxTokens int
	logger    *slog.Logger

	mu sync.RWMutex
}

// NewService creates the summary service.
func NewService(cfg config.KnowledgeConfig, store retrieval.Store, provider llms.Provider, maxTokens int, logger *slog.Logger) *Service {
	path := cfg.Path
	if path == "" {
		path = "data/knowledge_summary.json"
	}
	sampleMin := cfg.SampleMin
	if sampleMin <= 0 {
		sampleMin = 20
	}
	sampleMax := cfg.SampleMax
	if sampleMax < sampleMin {
		sampleMax = sampleMin
	}
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		path:      path,
		store:     store,
		provider:  provider,
		sampleMin: sampleMin,
		sampleMax: sampleMax,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Current returns the persisted summary, or the fallback when the
// artifact is missing or unreadable. It never fails.
func (s *Service) Current() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read knowledge summary, serving fallback", "path", s.path, "error", err)
		}
		return Fallback()
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.Warn("Corrupt knowledge summary, serving fallback", "path", s.path, "error", err)
		return Fallback()
	}
	return &summary
}

// Exists reports whether a generated artifact is on disk.
func (s *Service) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.path)
	return err == nil
}

// Delete removes the artifact. Callers invoke this before any index
// content changes so a stale summary is never served during a rebuild.
func (s *Service) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete knowledge summary: %w", err)
	}
	return nil
}

// Generate samples chunks from the index, asks the model for a fresh
// summary, and atomically replaces the artifact.
func (s *Service) Generate(ctx context.Context) (*Summary, error) {
	limit := s.sampleMin
	if s.sampleMax > s.sampleMin {
		limit += rand.Intn(s.sampleMax - s.sampleMin + 1)
	}

	chunks, err := s.store.Sample(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index is empty, nothing to summarize")
	}

	var excerpts strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&excerpts, "[%d] (%s, page %d) %s\n", i+1, chunk.Document, chunk.Page, chunk.Text)
	}

	completion, err := s.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "You summarize document collections. Always respond with valid JSON."},
		{Role: llms.RoleUser, Content: fmt.Sprintf(generationPrompt, excerpts.String())},
	}, nil, llms.WithJSONObject(), llms.WithMaxTokens(s.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(llms.ExtractJSON(completion.Text)), &summary); err != nil {
		return nil, fmt.Errorf("model returned invalid summary JSON: %w", err)
	}

	summary.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	summary.ChunkCount = len(chunks)

	if err := s.write(&summary); err != nil {
		return nil, err
	}

	s.logger.Info("Knowledge summary generated",
		"topics", len(summary.Topics),
		"suggested_questions", len(summary.SuggestedQuestions),
		"sampled_chunks", len(chunks))
	return &summary, nil
}

// write persists the summary via temp file and rename so readers never
// observe a partial artifact.
func (s *Service) write(summary *Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".knowledge_summary-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp summary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close summary file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace summary: %w", err)
	}
	return nil
}
