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
	"errors"
	"net/http"

	"github.com/planqa/planqa/pkg/agent"
	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/orchestrator"
	"github.com/planqa/planqa/pkg/retrieval"
)

type errorResponse struct {
	Error          string       `json:"error"`
	ReasoningSteps []agent.Step `json:"reasoning_steps,omitempty"`
}

func errorBody(message string) errorResponse {
	return errorResponse{Error: message}
}

// writeError maps pipeline errors to HTTP status codes. Validation
// failures are the caller's fault, backend unavailability is 503, and
// deadline expiry is 504 with any partial reasoning trace attached.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidQuestion),
		errors.Is(err, orchestrator.ErrQuestionTooLong),
		errors.Is(err, orchestrator.ErrInvalidDrawing),
		errors.Is(err, orchestrator.ErrInvalidMode):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var timeout *orchestrator.TimeoutError
	if errors.As(err, &timeout) {
		body := errorBody(timeout.Error())
		body.ReasoningSteps = timeout.Steps
		writeJSON(w, http.StatusGatewayTimeout, body)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		writeJSON(w, http.StatusGatewayTimeout, errorBody("request timed out"))
		return
	}

	var unavailable *retrieval.UnavailableError
	if errors.As(err, &unavailable) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(unavailable.Error()))
		return
	}

	var llmErr *llms.Error
	if errors.As(err, &llmErr) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("language model unavailable"))
		return
	}

	s.logger.Error("Unhandled pipeline error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
}
