package agent

import (
	"sync"

	"github.com/ToolLoop/ToolLoop/internal/dispatch"
	"github.com/ToolLoop/ToolLoop/internal/provider"
)

// State is the conversation owned by one loop run: the ordered message list
// plus the session's virtual documents. Messages are appended in whole-turn
// units, so the model never sees a partially applied turn.
type State struct {
	mu       sync.Mutex
	messages []provider.Message
	docs     *dispatch.Documents
}

// NewState creates a conversation seeded with a system prompt. docs may be
// nil, in which case a fresh document set is created.
func NewState(systemPrompt string, docs *dispatch.Documents) *State {
	if docs == nil {
		docs = dispatch.NewDocuments()
	}
	s := &State{docs: docs}
	if systemPrompt != "" {
		s.messages = append(s.messages, provider.Message{Role: "system", Content: systemPrompt})
	}
	return s
}

// Append adds messages as one atomic unit.
func (s *State) Append(msgs ...provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

// Messages returns a snapshot copy of the conversation.
func (s *State) Messages() []provider.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Documents returns the session's virtual document set.
func (s *State) Documents() *dispatch.Documents {
	return s.docs
}
