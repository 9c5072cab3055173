package retrieval

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/planqa/planqa/pkg/config"
	"github.com/planqa/planqa/pkg/embedders"
	"github.com/planqa/planqa/pkg/observability"
)

const (
	// TopK bounds for a single retrieval.
	MinTopK = 1
	MaxTopK = 20

	searchAttempts = 3
)

// searchBackoff returns the delay before retry attempt n (0-based),
// quadrupling from 100ms.
func searchBackoff(attempt int) time.Duration {
	delay := 100 * time.Millisecond
	for i := 0; i < attempt; i++ {
		delay *= 4
	}
	return delay
}

// Engine performs semantic retrieval: embed the query, search the
// store, and gate results on the relevance threshold.
type Engine struct {
	store       Store
	embedder    embedders.Embedder
	topKDefault int
	threshold   float64
	logger      *slog.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(store Store, embedder embedders.Embedder, cfg config.RetrievalConfig, logger *slog.Logger) *Engine {
	topK := cfg.TopKDefault
	if topK == 0 {
		topK = 5
	}
	threshold := 0.7
	if cfg.RelevanceThreshold != nil {
		threshold = *cfg.RelevanceThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		embedder:    embedder,
		topKDefault: topK,
		threshold:   threshold,
		logger:      logger,
	}
}

// Threshold returns the configured relevance threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// ClampTopK normalizes a requested result count into [MinTopK, MaxTopK],
// substituting the configured default for zero.
func (e *Engine) ClampTopK(topK int) int {
	if topK == 0 {
		return e.topKDefault
	}
	if topK < MinTopK {
		return MinTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Retrieve returns the most relevant chunks for the query, ordered by
// descending score. A top hit below the relevance threshold is treated
// as a miss and yields an empty result, not an error. Transient store
// failures are retried; persistent ones surface as UnavailableError.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	tracer := observability.GetTracer("retrieval")
	ctx, span := tracer.Start(ctx, observability.SpanRetrieval,
		trace.WithAttributes(attribute.Int("retrieval.top_k", topK)))
	defer span.End()

	start := time.Now()
	results, err := e.retrieve(ctx, query, topK)
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordRetrieval(ctx, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("retrieval.results", len(results)))
	return results, nil
}

func (e *Engine) retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	topK = e.ClampTopK(topK)

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}

	var results []Result
	for attempt := 0; attempt < searchAttempts; attempt++ {
		results, err = e.store.Search(ctx, vector, topK)
		if err == nil {
			break
		}

		if !isRetryable(err) {
			return nil, &UnavailableError{Err: err}
		}

		if attempt < searchAttempts-1 {
			delay := searchBackoff(attempt)
			e.logger.Warn("Vector search failed, retrying",
				"attempt", attempt+1,
				"delay", delay,
				"error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	if err != nil {
		return nil, &UnavailableError{Err: err}
	}

	// A best hit below the threshold means the corpus has nothing
	// relevant. Report a miss rather than low-quality context.
	if len(results) == 0 || results[0].Score < e.threshold {
		e.logger.Debug("Retrieval miss", "results", len(results), "threshold", e.threshold)
		return nil, nil
	}

	return results, nil
}

// isRetryable reports whether a store error is worth retrying. Auth
// failures never resolve on retry.
func isRetryable(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch s.Code() {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument:
		return false
	}
	return true
}
