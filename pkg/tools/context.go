package tools

import (
	"context"
	"sync"

	"github.com/planqa/planqa/pkg/geometry"
	"github.com/planqa/planqa/pkg/retrieval"
)

type drawingKey struct{}

// WithDrawing attaches the request's drawing to the context. The model
// never passes the drawing as a tool argument; drawing-aware tools read
// it from here.
func WithDrawing(ctx context.Context, d *geometry.Drawing) context.Context {
	return context.WithValue(ctx, drawingKey{}, d)
}

// DrawingFrom returns the request drawing, if one was attached.
func DrawingFrom(ctx context.Context) (*geometry.Drawing, bool) {
	d, ok := ctx.Value(drawingKey{}).(*geometry.Drawing)
	if !ok || d == nil {
		return nil, false
	}
	return d, true
}

// SourceCollector accumulates retrieval hits made during an agentic run
// so the final answer can cite them.
type SourceCollector struct {
	mu      sync.Mutex
	results []retrieval.Result
}

func (c *SourceCollector) Add(results []retrieval.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, results...)
}

// Results returns a copy of everything collected so far.
func (c *SourceCollector) Results() []retrieval.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]retrieval.Result, len(c.results))
	copy(out, c.results)
	return out
}

type collectorKey struct{}

// WithSourceCollector attaches a collector for retrieval hits.
func WithSourceCollector(ctx context.Context, c *SourceCollector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// SourceCollectorFrom returns the attached collector, if any.
func SourceCollectorFrom(ctx context.Context) (*SourceCollector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*SourceCollector)
	if !ok || c == nil {
		return nil, false
	}
	return c, true
}
