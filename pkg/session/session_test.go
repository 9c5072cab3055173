package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure(t *testing.T) {
	m := NewManager()

	assert.Equal(t, "abc", m.Ensure("abc"))

	minted := m.Ensure("")
	require.NotEmpty(t, minted)
	assert.NotEqual(t, minted, m.Ensure(""))
}

func TestFormattedHistory(t *testing.T) {
	m := NewManager()
	m.AddExchange("s1", "What is the height limit?", "The limit is 12 metres.")
	m.AddExchange("s1", "And the depth?", "4 metres for rear extensions.")

	history := m.FormattedHistory("s1")
	assert.True(t, strings.HasPrefix(history, "Previous conversation:"))
	assert.Contains(t, history, "User: What is the height limit?")
	assert.Contains(t, history, "Assistant: The limit is 12 metres.")
	assert.Contains(t, history, "User: And the depth?")
}

func TestFormattedHistory_LastThreeOnly(t *testing.T) {
	m := NewManager()
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		m.AddExchange("s1", q, "a")
	}

	history := m.FormattedHistory("s1")
	assert.NotContains(t, history, "User: q1")
	assert.NotContains(t, history, "User: q2")
	assert.Contains(t, history, "User: q3")
	assert.Contains(t, history, "User: q5")
}

func TestFormattedHistory_TruncatesLongAnswers(t *testing.T) {
	m := NewManager()
	long := strings.Repeat("x", 300)
	m.AddExchange("s1", "q", long)

	history := m.FormattedHistory("s1")
	assert.Contains(t, history, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, history, strings.Repeat("x", 201))
}

func TestFormattedHistory_UnknownSession(t *testing.T) {
	assert.Empty(t, NewManager().FormattedHistory("nope"))
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.AddExchange("s1", "q", "a")

	assert.True(t, m.Clear("s1"))
	assert.False(t, m.Clear("s1"))
	assert.Empty(t, m.FormattedHistory("s1"))
	assert.Equal(t, 0, m.Count())
}
