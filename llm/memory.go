package llm

import (
	"strings"
	"sync"
)

// Message is a single turn in the conversation buffer.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Memory is a bounded conversation buffer. The assistant appends one
// user/assistant pair per completed turn and renders the history into
// prompts for the RAG chains. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	maxTurns int
	messages []Message
}

// NewMemory creates a buffer keeping the most recent maxTurns exchanges.
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Memory{maxTurns: maxTurns}
}

// Append records one completed user/assistant exchange.
func (m *Memory) Append(userText, assistantText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages,
		Message{Role: "user", Content: userText},
		Message{Role: "assistant", Content: assistantText},
	)
	if over := len(m.messages) - m.maxTurns*2; over > 0 {
		m.messages = append([]Message(nil), m.messages[over:]...)
	}
}

// Messages returns a copy of the buffered history, oldest first.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Render flattens the history into a prompt block, or "" when empty.
func (m *Memory) Render() string {
	msgs := m.Messages()
	if len(msgs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case "user":
			b.WriteString("User: ")
		case "assistant":
			b.WriteString("Assistant: ")
		default:
			b.WriteString(msg.Role + ": ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clear drops the buffered history.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
