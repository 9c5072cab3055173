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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/orchestrator"
)

// maxRequestBytes bounds the request body, dominated by the drawing
// JSON.
const maxRequestBytes = 4 << 20

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, orchestrator.ModeStandard)
}

func (s *Server) handleQueryAgentic(w http.ResponseWriter, r *http.Request) {
	s.answer(w, r, orchestrator.ModeAgentic)
}

// answer decodes the request body and dispatches it. The endpoint, not
// the body, picks the pipeline.
func (s *Server) answer(w http.ResponseWriter, r *http.Request, mode string) {
	var req orchestrator.Request
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	req.Mode = mode

	response, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// handleKnowledgeSummary never returns a server error: the provider
// falls back to a built-in summary when no artifact exists.
func (s *Server) handleKnowledgeSummary(w http.ResponseWriter, r *http.Request) {
	var summary *knowledge.Summary
	if s.summaries != nil {
		summary = s.summaries.Current()
	} else {
		summary = knowledge.Fallback()
	}
	writeJSON(w, http.StatusOK, summary)
}

type healthResponse struct {
	Status      string `json:"status"`
	IndexExists bool   `json:"index_exists"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	exists := false
	if s.index != nil {
		ok, err := s.index.CollectionExists(ctx)
		if err != nil {
			s.logger.Warn("Health index check failed", "error", err)
		} else {
			exists = ok
		}
	}

	status := "ok"
	if !exists {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: status, IndexExists: exists})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
