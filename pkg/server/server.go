// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the answering service over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planqa/planqa/pkg/config"
	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/orchestrator"
)

// Answerer is the query handling dependency.
type Answerer interface {
	Answer(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// SummaryProvider serves the current knowledge summary.
type SummaryProvider interface {
	Current() *knowledge.Summary
}

// IndexChecker reports whether the regulation index exists.
type IndexChecker interface {
	CollectionExists(ctx context.Context) (bool, error)
}

// Server is the HTTP front of the service.
type Server struct {
	cfg       config.ServerConfig
	answerer  Answerer
	summaries SummaryProvider
	index     IndexChecker
	logger    *slog.Logger
	server    *http.Server
}

// New creates the HTTP server with all routes registered.
func New(cfg config.ServerConfig, answerer Answerer, summaries SummaryProvider, index IndexChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		answerer:  answerer,
		summaries: summaries,
		index:     index,
		logger:    logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(s.logRequests)
	router.Use(middleware.Recoverer)

	router.Post("/query", s.handleQuery)
	router.Post("/query-agentic", s.handleQueryAgentic)
	router.Get("/knowledge-summary", s.handleKnowledgeSummary)
	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route tree, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
