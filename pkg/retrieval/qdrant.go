// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrieval

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/planqa/planqa/pkg/config"
)

// sampleScrollWindow caps how many points Sample scrolls before picking a
// random subset.
const sampleScrollWindow = 512

// QdrantStore implements Store using the Qdrant vector database.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a store bound to the configured collection.
func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334 // Qdrant gRPC port
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w\n"+
			"  TIP: Troubleshooting:\n"+
			"     - Ensure Qdrant is running\n"+
			"     - Verify host and port configuration\n"+
			"     - For Docker: start Qdrant container (docker run -p 6333:6333 -p 6334:6334 qdrant/qdrant)",
			host, port, err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

// Search finds the topK most similar chunks.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	pointsClient := s.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]Result, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		payload := convertPayload(point.Payload)
		results = append(results, Result{
			ID:          pointID(point.Id),
			Document:    payloadString(payload, "document"),
			Title:       payloadString(payload, "title"),
			Page:        payloadInt(payload, "page"),
			Paragraph:   payloadInt(payload, "paragraph"),
			Snippet:     payloadString(payload, "content"),
			Score:       float64(point.Score),
			ContentType: payloadContentType(payload),
		})
	}

	return results, nil
}

// Upsert writes chunks with their vectors. Chunks and vectors are
// matched positionally.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		contentType := chunk.ContentType
		if contentType == "" {
			contentType = ContentTypeText
		}

		payload := make(map[string]*qdrant.Value)
		for key, value := range map[string]any{
			"content":      chunk.Text,
			"document":     chunk.Document,
			"title":        chunk.Title,
			"page":         chunk.Page,
			"paragraph":    chunk.Paragraph,
			"content_type": contentType,
		} {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
			}
			payload[key] = val
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// RecreateCollection drops and recreates the collection.
func (s *QdrantStore) RecreateCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	return s.EnsureCollection(ctx, dimension)
}

// CollectionExists reports whether the regulation collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return exists, nil
}

// Count returns the number of stored chunks.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// Sample returns up to limit chunks picked at random. It scrolls a
// bounded window of points and shuffles client-side, which is adequate
// for corpus-scale summaries.
func (s *QdrantStore) Sample(ctx context.Context, limit int) ([]Chunk, error) {
	window := uint32(sampleScrollWindow)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &window,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	chunks := make([]Chunk, 0, len(points))
	for _, point := range points {
		payload := convertPayload(point.Payload)
		chunks = append(chunks, Chunk{
			ID:          pointID(point.Id),
			Document:    payloadString(payload, "document"),
			Title:       payloadString(payload, "title"),
			Page:        payloadInt(payload, "page"),
			Paragraph:   payloadInt(payload, "paragraph"),
			Text:        payloadString(payload, "content"),
			ContentType: payloadContentType(payload),
		})
	}

	rand.Shuffle(len(chunks), func(i, j int) {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}

	return chunks, nil
}

// Close closes the Qdrant client.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID renders a Qdrant point id as a string.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// convertPayload converts a Qdrant payload to plain Go values.
func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			metadata[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			metadata[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			metadata[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			metadata[key] = v.BoolValue
		default:
			metadata[key] = value
		}
	}
	return metadata
}

func payloadString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// payloadContentType reads content_type, defaulting to text for points
// written before the field existed.
func payloadContentType(metadata map[string]any) string {
	if v := payloadString(metadata, "content_type"); v != "" {
		return v
	}
	return ContentTypeText
}

func payloadInt(metadata map[string]any, key string) int {
	switch v := metadata[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)
