package engine

import (
	"context"
	"sync"

	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/pkg/errors"
)

// ErrScriptExhausted is returned by a ScriptedEngine that ran out of responses.
var ErrScriptExhausted = errors.New("scripted engine has no responses left")

// ScriptedEngine replays a fixed list of responses. It records every request it receives,
// which makes it the engine of choice for deterministic tests and dry runs.
type ScriptedEngine struct {
	mu        sync.Mutex
	responses []string
	index     int
	loop      bool
	requests  []conversation.Conversation
}

var _ Engine = (*ScriptedEngine)(nil)

// NewScriptedEngine returns the responses in order and fails once they are used up.
func NewScriptedEngine(responses ...string) *ScriptedEngine {
	return &ScriptedEngine{responses: responses}
}

// NewLoopingEngine returns the responses in a round-robin fashion, forever.
func NewLoopingEngine(responses ...string) *ScriptedEngine {
	return &ScriptedEngine{responses: responses, loop: true}
}

func (s *ScriptedEngine) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, messages.Clone())

	if len(s.responses) == 0 || (!s.loop && s.index >= len(s.responses)) {
		return nil, ErrScriptExhausted
	}

	text := s.responses[s.index%len(s.responses)]
	s.index++

	return conversation.NewChatMessage(conversation.RoleAssistant, text), nil
}

// Requests returns a copy of every conversation the engine was called with.
func (s *ScriptedEngine) Requests() []conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversation.Conversation(nil), s.requests...)
}

func (s *ScriptedEngine) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
