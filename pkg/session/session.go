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

// Package session keeps per-session conversation history so follow-up
// questions can be answered with prior context.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// historyExchanges is how many recent exchanges feed back into
	// prompts.
	historyExchanges = 3

	// maxAnswerLength truncates long answers in formatted history.
	maxAnswerLength = 200
)

// Exchange is one question/answer pair.
type Exchange struct {
	Question string
	Answer   string
	At       time.Time
}

// Manager is an in-memory session store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string][]Exchange
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string][]Exchange),
	}
}

// Ensure returns the given session id, minting a fresh one when the id
// is empty.
func (m *Manager) Ensure(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// AddExchange records a question/answer pair for the session.
func (m *Manager) AddExchange(id, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = append(m.sessions[id], Exchange{
		Question: question,
		Answer:   answer,
		At:       time.Now(),
	})
}

// FormattedHistory renders the last few exchanges for inclusion in a
// prompt. Long answers are truncated. Returns "" for unknown sessions.
func (m *Manager) FormattedHistory(id string) string {
	m.mu.RLock()
	exchanges := m.sessions[id]
	m.mu.RUnlock()

	if len(exchanges) == 0 {
		return ""
	}
	if len(exchanges) > historyExchanges {
		exchanges = exchanges[len(exchanges)-historyExchanges:]
	}

	lines := []string{"Previous conversation:"}
	for _, ex := range exchanges {
		lines = append(lines, fmt.Sprintf("User: %s", ex.Question))

		answer := ex.Answer
		if len(answer) > maxAnswerLength {
			answer = answer[:maxAnswerLength] + "..."
		}
		lines = append(lines, fmt.Sprintf("Assistant: %s", answer))
	}

	return strings.Join(lines, "\n")
}

// Clear removes the session's history. Reports whether it existed.
func (m *Manager) Clear(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
